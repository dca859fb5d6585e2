package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogops/price-sync/pkg/validator"
)

type createProductInput struct {
	Code  string  `validate:"required,productcode,max=64"`
	Name  string  `validate:"required,max=255"`
	Price float64 `validate:"gte=0"`
}

func TestDefaultValidatorProductCode(t *testing.T) {
	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   createProductInput
		wantErr bool
	}{
		{
			name:  "valid",
			input: createProductInput{Code: "P100", Name: "Product One", Price: 10.00},
		},
		{
			name:  "dashed code",
			input: createProductInput{Code: "sku-42", Name: "Answer", Price: 0},
		},
		{
			name:    "empty code",
			input:   createProductInput{Name: "No Code", Price: 1},
			wantErr: true,
		},
		{
			name:    "code with spaces",
			input:   createProductInput{Code: "P 100", Name: "Spaced", Price: 1},
			wantErr: true,
		},
		{
			name:    "negative price",
			input:   createProductInput{Code: "P100", Name: "Cheap", Price: -0.01},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, validator.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
