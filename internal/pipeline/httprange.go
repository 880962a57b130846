package pipeline

import (
	"errors"
	"strconv"
	"strings"
)

// ErrRangeUnsatisfiable means the requested range is malformed or outside
// [0, fileSize), and the caller should answer 416 with Content-Range:
// bytes */fileSize (spec §4.H, §7).
var ErrRangeUnsatisfiable = errors.New("pipeline: range not satisfiable")

// ParseRange parses a single-range "Range: bytes=start-end" header value
// against fileSize, following parse_range_header in the original
// implementation: no header means the whole file; a malformed or
// out-of-bounds header is ErrRangeUnsatisfiable.
func ParseRange(rangeHeader string, fileSize int64) (start, end int64, err error) {
	if rangeHeader == "" {
		return 0, fileSize - 1, nil
	}

	value := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return 0, 0, ErrRangeUnsatisfiable
	}

	start, serr := strconv.ParseInt(parts[0], 10, 64)
	if serr != nil {
		return 0, 0, ErrRangeUnsatisfiable
	}

	if parts[1] == "" {
		end = fileSize - 1
	} else {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, ErrRangeUnsatisfiable
		}
	}

	if start < 0 || end >= fileSize || end < start {
		return 0, 0, ErrRangeUnsatisfiable
	}

	return start, end, nil
}
