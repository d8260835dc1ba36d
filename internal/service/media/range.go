package media

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nkiryanov/musicbox/internal/apperrors"
)

// Inclusive byte range within an object
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// Range outside of object bounds or the header could not be parsed
// Size is needed to render "Content-Range: bytes */<size>"
type RangeError struct {
	Header string
	Size   int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %q not satisfiable for object of %d bytes", e.Header, e.Size)
}

func (e *RangeError) Unwrap() error {
	return apperrors.ErrRangeNotSatisfiable
}

// Parse Range header against object of given size
//
// Only the first range of the set is used. Ranges reaching beyond the object end are rejected, not clamped.
// Suffix ranges (bytes=-N) select the last N bytes.
func ParseRange(header string, size int64) (ByteRange, error) {
	notSatisfiable := &RangeError{Header: header, Size: size}

	set, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || size <= 0 {
		return ByteRange{}, notSatisfiable
	}

	first, _, _ := strings.Cut(set, ",")
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(first), "-")
	if !ok {
		return ByteRange{}, notSatisfiable
	}

	// Suffix form: bytes=-N
	if startStr == "" {
		n, err := parseOffset(endStr)
		if err != nil || n == 0 {
			return ByteRange{}, notSatisfiable
		}
		return ByteRange{Start: max(size-n, 0), End: size - 1}, nil
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return ByteRange{}, notSatisfiable
	}

	end := size - 1
	if endStr != "" {
		end, err = parseOffset(endStr)
		if err != nil {
			return ByteRange{}, notSatisfiable
		}
	}

	if start >= size || end >= size || start > end {
		return ByteRange{}, notSatisfiable
	}

	return ByteRange{Start: start, End: end}, nil
}

func parseOffset(s string) (int64, error) {
	s = strings.TrimSpace(s)
	// ParseInt accepts a sign, offsets must be plain digits
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, fmt.Errorf("bad offset %q", s)
	}
	return strconv.ParseInt(s, 10, 64)
}
