package strings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty input passes through",
			in:   nil,
			want: nil,
		},
		{
			name: "trims whitespace and drops empties",
			in:   []string{" amt.deltaker-v1 ", "", "   "},
			want: []string{"amt.deltaker-v1"},
		},
		{
			name: "drops duplicates keeping first-seen order",
			in:   []string{"b", "a", "b", "a"},
			want: []string{"b", "a"},
		},
		{
			name: "duplicates detected after trimming",
			in:   []string{"reaktivering", " reaktivering"},
			want: []string{"reaktivering"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DedupeAndTrim(tt.in))
		})
	}
}
