package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToGB(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "megabytes",
			input: "512 MB",
			want:  "0.500 GB",
		},
		{
			name:  "terabytes",
			input: "4.3 TB",
			want:  "4403.2 GB",
		},
		{
			name:  "gigabytes unchanged in magnitude",
			input: "2.5 GB",
			want:  "2.50 GB",
		},
		{
			name:  "kilobytes small precision",
			input: "100 KB",
			want:  "0.0001 GB",
		},
		{
			name:  "bytes",
			input: "1073741824 B",
			want:  "1.00 GB",
		},
		{
			name:  "petabytes",
			input: "1 PB",
			want:  "1048576.0 GB",
		},
		{
			name:  "comma separated number",
			input: "1,536 MB",
			want:  "1.50 GB",
		},
		{
			name:  "no unit nonzero passes through",
			input: "42",
			want:  "42",
		},
		{
			name:  "zero",
			input: "0",
			want:  "0 GB",
		},
		{
			name:  "unknown unit passes through",
			input: "5 bananas",
			want:  "5 bananas",
		},
		{
			name:  "garbage passes through",
			input: "not a size",
			want:  "not a size",
		},
		{
			name:  "empty passes through",
			input: "",
			want:  "",
		},
		{
			name:  "lowercase unit",
			input: "512 mb",
			want:  "0.500 GB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToGB(tt.input))
		})
	}
}

// Normalizing an already-canonical value never changes magnitude, only
// formatting.
func TestToGBIdempotent(t *testing.T) {
	inputs := []string{"512 MB", "4.3 TB", "0.25 GB", "100 KB", "17 GB"}

	for _, in := range inputs {
		once := ToGB(in)
		twice := ToGB(once)
		assert.Equal(t, once, twice, "ToGB(%q) should be a fixed point", in)
	}
}

func TestMagnitude(t *testing.T) {
	v, ok := Magnitude("1,234.5 GB")
	assert.True(t, ok)
	assert.Equal(t, 1234.5, v)

	_, ok = Magnitude("N/A")
	assert.False(t, ok)
}
