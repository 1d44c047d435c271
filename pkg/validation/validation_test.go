package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-service/pkg/errors"
)

type scan struct {
	SKU         string `json:"sku" validate:"required,sku"`
	Destination string `json:"destination" validate:"omitempty,location_code"`
	Length      string `json:"length" validate:"omitempty,sku_length"`
	Pieces      int    `json:"piecesCut" validate:"gte=0"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name   string
		input  scan
		fields map[string]string
	}{
		{
			name:  "valid",
			input: scan{SKU: "ST-32-R-32-RAW", Destination: "RACK-01", Length: "30"},
		},
		{
			name:   "missing sku",
			input:  scan{},
			fields: map[string]string{"sku": "is required"},
		},
		{
			name:  "bad destination and negative pieces",
			input: scan{SKU: "ST-32-R-32-RAW", Destination: "rack 1", Pieces: -1},
			fields: map[string]string{
				"destination": "must contain only uppercase letters, digits and dashes",
				"piecesCut":   "must be greater than or equal to 0",
			},
		},
		{
			name:   "bad length",
			input:  scan{SKU: "ST-32-R-32-RAW", Length: "3"},
			fields: map[string]string{"length": "must be two digits"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.input)
			if tt.fields == nil {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, errors.CodeValidation, err.Code)
			assert.Equal(t, tt.fields, err.Details)
		})
	}
}
