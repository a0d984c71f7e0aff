package foundationdb

// StreamingMode hints how a range read will be consumed. It only affects
// how many pairs each backend fetch asks for; results are identical across
// modes.
type StreamingMode int

const (
	// StreamingModeWantAll fetches the whole range in as few round trips
	// as possible. The default for reads that are not iterated lazily.
	StreamingModeWantAll StreamingMode = iota

	// StreamingModeIterator starts with small chunks and grows them as
	// iteration proceeds. The default for lazy iteration.
	StreamingModeIterator

	// StreamingModeSmall fetches small fixed-size chunks.
	StreamingModeSmall

	// StreamingModeMedium fetches medium fixed-size chunks.
	StreamingModeMedium

	// StreamingModeLarge fetches large fixed-size chunks.
	StreamingModeLarge

	// StreamingModeSerial fetches maximum-size chunks regardless of
	// iteration progress.
	StreamingModeSerial

	// StreamingModeExact fetches exactly the row limit, which must be set.
	StreamingModeExact
)

const (
	smallChunk  = 256
	mediumChunk = 1000
	largeChunk  = 4000
	maxChunk    = 8000
)

func (m StreamingMode) String() string {
	switch m {
	case StreamingModeWantAll:
		return "want_all"
	case StreamingModeIterator:
		return "iterator"
	case StreamingModeSmall:
		return "small"
	case StreamingModeMedium:
		return "medium"
	case StreamingModeLarge:
		return "large"
	case StreamingModeSerial:
		return "serial"
	case StreamingModeExact:
		return "exact"
	default:
		return "unknown"
	}
}

// chunkHint returns the number of pairs to request for the iteration-th
// fetch of a stream with the given row limit (0 = unlimited).
func (m StreamingMode) chunkHint(iteration, limit int) int {
	var hint int
	switch m {
	case StreamingModeSmall:
		hint = smallChunk
	case StreamingModeMedium:
		hint = mediumChunk
	case StreamingModeLarge:
		hint = largeChunk
	case StreamingModeWantAll, StreamingModeSerial:
		hint = maxChunk
	case StreamingModeExact:
		hint = limit
	default: // StreamingModeIterator
		hint = smallChunk << iteration
		if hint > maxChunk || hint <= 0 {
			hint = maxChunk
		}
	}

	if limit > 0 && hint > limit {
		hint = limit
	}
	return hint
}
