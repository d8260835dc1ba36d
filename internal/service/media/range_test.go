package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/musicbox/internal/apperrors"
)

func Test_ParseRange(t *testing.T) {
	t.Parallel()

	t.Run("satisfiable", func(t *testing.T) {
		tests := []struct {
			name   string
			header string
			size   int64
			want   ByteRange
		}{
			{"closed", "bytes=500-999", 1000, ByteRange{500, 999}},
			{"open end", "bytes=500-", 1000, ByteRange{500, 999}},
			{"first byte", "bytes=0-0", 1000, ByteRange{0, 0}},
			{"last byte", "bytes=999-999", 1000, ByteRange{999, 999}},
			{"whole", "bytes=0-", 1000, ByteRange{0, 999}},
			{"suffix", "bytes=-100", 1000, ByteRange{900, 999}},
			{"suffix longer than object", "bytes=-5000", 1000, ByteRange{0, 999}},
			{"multi range uses first", "bytes=0-9,20-29", 1000, ByteRange{0, 9}},
			{"spaces", " bytes= 10 - 19 ", 1000, ByteRange{10, 19}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := ParseRange(tt.header, tt.size)

				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("not satisfiable", func(t *testing.T) {
		tests := []struct {
			name   string
			header string
			size   int64
		}{
			{"start beyond end", "bytes=1000-1500", 1000},
			{"start at size", "bytes=1000-", 1000},
			{"end at size", "bytes=500-1000", 1000},
			{"start after end", "bytes=600-500", 1000},
			{"zero suffix", "bytes=-0", 1000},
			{"unknown unit", "items=0-10", 1000},
			{"no dash", "bytes=10", 1000},
			{"not a number", "bytes=a-b", 1000},
			{"negative start", "bytes=--5", 1000},
			{"signed start", "bytes=+5-10", 1000},
			{"empty object", "bytes=0-", 0},
			{"empty", "", 1000},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParseRange(tt.header, tt.size)

				require.ErrorIs(t, err, apperrors.ErrRangeNotSatisfiable)

				var rangeErr *RangeError
				require.ErrorAs(t, err, &rangeErr)
				assert.Equal(t, tt.size, rangeErr.Size)
			})
		}
	})

	t.Run("length", func(t *testing.T) {
		assert.Equal(t, int64(500), ByteRange{500, 999}.Length())
		assert.Equal(t, int64(1), ByteRange{7, 7}.Length())
	})
}
