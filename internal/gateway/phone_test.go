package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"local with leading zero", "0712345678", "254712345678", false},
		{"international with plus and spaces", "+254 712 345 678", "254712345678", false},
		{"already normalized", "254712345678", "254712345678", false},
		{"bare subscriber number", "712345678", "254712345678", false},
		{"dashes", "0712-345-678", "254712345678", false},
		{"empty", "", "", true},
		{"letters only", "phone", "", true},
		{"too short", "07123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	once, err := NormalizePhone("0712 345678")
	assert.NoError(t, err)

	twice, err := NormalizePhone(once)
	assert.NoError(t, err)
	assert.Equal(t, once, twice)
}
