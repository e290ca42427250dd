package chunker

import "errors"

// ErrSourceMutated is returned when the source file's size changes between
// the start and end of a chunking pass, indicating concurrent modification
// or truncation invalidated the read.
var ErrSourceMutated = errors.New("chunker: source file mutated during read")
