package syncengine

// SafetyConfig controls big-delete protection thresholds: a batch of
// watcher events that deletes an unusually large share of the catalog is
// far more likely to be a mistaken rm -rf or a disconnected mount than a
// legitimate bulk cleanup.
type SafetyConfig struct {
	BigDeleteMinItems   int     // catalog must have at least this many entries before the check applies
	BigDeleteMaxCount   int     // max deletes in a single batch before triggering
	BigDeleteMaxPercent float64 // max percentage of catalog entries deleted in a single batch
}

const (
	defaultBigDeleteMinItems   = 10
	defaultBigDeleteMaxCount   = 1000
	defaultBigDeleteMaxPercent = 50.0
	percentMultiplier          = 100.0
)

// DefaultSafetyConfig returns sensible defaults: min 10 items, max 1000
// deletes, max 50% of the catalog in one batch.
func DefaultSafetyConfig() *SafetyConfig {
	return &SafetyConfig{
		BigDeleteMinItems:   defaultBigDeleteMinItems,
		BigDeleteMaxCount:   defaultBigDeleteMaxCount,
		BigDeleteMaxPercent: defaultBigDeleteMaxPercent,
	}
}

// checkBigDelete reports whether deleteCount deletions out of catalogCount
// total entries exceeds the configured safety thresholds. A nil or
// zero-value config disables the check.
func checkBigDelete(deleteCount, catalogCount int, cfg *SafetyConfig) bool {
	if cfg == nil || *cfg == (SafetyConfig{}) {
		return false
	}

	if catalogCount < cfg.BigDeleteMinItems {
		return false
	}

	if deleteCount > cfg.BigDeleteMaxCount {
		return true
	}

	percentage := float64(deleteCount) / float64(catalogCount) * percentMultiplier

	return percentage > cfg.BigDeleteMaxPercent
}
