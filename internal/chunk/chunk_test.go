package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name:    "window advances by size minus overlap",
			text:    "abcdefghij",
			size:    4,
			overlap: 1,
			want:    []string{"abcd", "defg", "ghij"},
		},
		{
			name:    "no overlap",
			text:    "abcdef",
			size:    2,
			overlap: 0,
			want:    []string{"ab", "cd", "ef"},
		},
		{
			name:    "final partial segment",
			text:    "abcde",
			size:    3,
			overlap: 0,
			want:    []string{"abc", "de"},
		},
		{
			name:    "text shorter than size",
			text:    "ab",
			size:    10,
			overlap: 3,
			want:    []string{"ab"},
		},
		{
			name:    "text exactly size",
			text:    "abcd",
			size:    4,
			overlap: 1,
			want:    []string{"abcd"},
		},
		{
			name:    "empty input",
			text:    "",
			size:    4,
			overlap: 1,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.text, tt.size, tt.overlap))
		})
	}
}

func TestSplit_CoversInput(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)

	for _, p := range []struct{ size, overlap int }{
		{100, 20}, {64, 0}, {7, 6}, {1, 0}, {1000, 200},
	} {
		segments := Split(text, p.size, p.overlap)
		require.NotEmpty(t, segments)

		// Reassembling with the overlap stripped must reproduce the input.
		var b strings.Builder
		for i, seg := range segments {
			r := []rune(seg)
			if i > 0 {
				require.GreaterOrEqual(t, len(r), p.overlap)
				r = r[p.overlap:]
			}
			b.WriteString(string(r))
		}
		assert.Equal(t, text, b.String(), "size=%d overlap=%d", p.size, p.overlap)

		// Every segment except the last is exactly size runes.
		for i, seg := range segments[:len(segments)-1] {
			assert.Len(t, []rune(seg), p.size, "segment %d", i)
		}
	}
}

func TestSplit_MultiByte(t *testing.T) {
	// Window arithmetic is in runes, not bytes.
	got := Split("こんにちは世界です", 4, 1)
	assert.Equal(t, []string{"こんにち", "ちは世界", "界です"}, got)
}

func TestSplit_InvalidParams(t *testing.T) {
	assert.Panics(t, func() { Split("abc", 0, 0) })
	assert.Panics(t, func() { Split("abc", -1, 0) })
	assert.Panics(t, func() { Split("abc", 4, 4) })
	assert.Panics(t, func() { Split("abc", 4, -1) })
}
