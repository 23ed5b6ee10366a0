package prover

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zkcredit/internal/model"
)

func TestEncode_CanonicalOrder(t *testing.T) {
	doc, err := Encode(sampleInputs())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(doc)), "\n")
	require.Len(t, lines, len(model.FieldOrder))
	for i, name := range model.FieldOrder {
		key, _, ok := strings.Cut(lines[i], " = ")
		require.True(t, ok, lines[i])
		assert.Equal(t, name, key)
	}
	assert.Contains(t, string(doc), "total_invoices = 20\n")
	assert.Contains(t, string(doc), "concentration_threshold_bp = 5000")
}

func TestDecode_RoundTrip(t *testing.T) {
	doc, err := Encode(sampleInputs())
	require.NoError(t, err)
	got, err := Decode(doc)
	require.NoError(t, err)
	assert.Equal(t, sampleInputs(), got)
}

func TestDecode_UnknownKey(t *testing.T) {
	_, err := Decode([]byte("total_invoices = 1\nbogus = 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prover: decode inputs")
}

func TestDecode_Negative(t *testing.T) {
	_, err := Decode([]byte("total_invoices = -1\n"))
	require.Error(t, err)
}

func TestParseOutputs(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		lenient bool
		want    [6]bool
		padded  int
		wantErr bool
	}{
		{
			name: "six outputs",
			text: "[c] Circuit output: [Field(1), Field(0), Field(0), Field(1), Field(1), Field(0)]",
			want: [6]bool{true, false, false, true, true, false},
		},
		{
			name:    "strict short",
			text:    "Field(1) Field(1)",
			wantErr: true,
		},
		{
			name:    "strict long",
			text:    strings.Repeat("Field(1) ", 7),
			wantErr: true,
		},
		{
			name:    "lenient short",
			text:    "Field(1) Field(1) Field(1)",
			lenient: true,
			want:    [6]bool{true, true, true},
			padded:  3,
		},
		{
			name:    "lenient empty",
			text:    "no output at all",
			lenient: true,
			padded:  6,
		},
		{
			name:    "lenient extra ignored",
			text:    strings.Repeat("Field(1) ", 6) + "Field(0)",
			lenient: true,
			want:    [6]bool{true, true, true, true, true, true},
		},
		{
			name:    "non boolean",
			text:    "Field(1) Field(2) Field(1) Field(1) Field(1) Field(1)",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, padded, err := ParseOutputs(tt.text, tt.lenient)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.padded, padded)
		})
	}
}

func TestFormatOutputs(t *testing.T) {
	assert.Equal(t,
		"[Field(1), Field(0), Field(0), Field(0), Field(0), Field(1)]",
		FormatOutputs([6]bool{true, false, false, false, false, true}))
}
