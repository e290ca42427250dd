package syncengine

import "github.com/dropsync/dropsync/internal/watcher"

// plan determines the plan kind for a single watcher event, per the
// event-to-plan mapping table. Whether a Modified event actually needs a
// re-upload (file_hash unchanged vs. changed) is resolved by the executor
// after chunking, since that decision requires comparing against the
// catalog's current record — not something the planner can see from the
// event alone.
func plan(ev watcher.Event) planKind {
	switch ev.Type {
	case watcher.Created:
		if ev.IsDir {
			return planUpsertFolder
		}

		return planUploadNewFile

	case watcher.Modified:
		return planUploadModifiedFile

	case watcher.Renamed:
		return planRename

	case watcher.Deleted:
		return planDelete

	default:
		return planDelete
	}
}
