package common

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorRules(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		rules   []ValidationRule
		wantErr bool
	}{
		{name: "in range", value: 0.5, rules: []ValidationRule{Finite, Range(0, 1)}},
		{name: "above range", value: 1.5, rules: []ValidationRule{Range(0, 1)}, wantErr: true},
		{name: "nan", value: math.NaN(), rules: []ValidationRule{Finite, Range(0, 1)}, wantErr: true},
		{name: "infinite", value: math.Inf(1), rules: []ValidationRule{Finite}, wantErr: true},
		{name: "not a number", value: "x", rules: []ValidationRule{Finite}, wantErr: true},
		{name: "required blank", value: "  ", rules: []ValidationRule{Required}, wantErr: true},
		{name: "currency ok", value: "EUR", rules: []ValidationRule{CurrencyCode}},
		{name: "currency lower", value: "eur", rules: []ValidationRule{CurrencyCode}, wantErr: true},
		{name: "nil pointer", value: (*float64)(nil), rules: []ValidationRule{Required}, wantErr: true},
		{name: "too long", value: "abcd", rules: []ValidationRule{MaxLength(3)}, wantErr: true},
		{name: "short enough", value: "äöå", rules: []ValidationRule{Required, MaxLength(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator().Field("f", tt.value, tt.rules...)
			assert.Equal(t, tt.wantErr, v.HasErrors())
			err := ValidateAndReturnError(v)
			if tt.wantErr {
				assert.Contains(t, v.ErrorMessage(), "'f'")
				assert.Contains(t, err.Error(), "InvalidArgument")
			} else {
				assert.Empty(t, v.ErrorMessage())
				assert.NoError(t, err)
			}
		})
	}
}

func TestToStatus(t *testing.T) {
	err := NewAppError("INVALID_OCR_RESULT", "bad", ErrValidation)
	require.True(t, errors.Is(err, ErrValidation))

	st := ToStatus(err)
	require.Error(t, st)
	assert.Contains(t, st.Error(), "InvalidArgument")

	assert.Contains(t, ToStatus(errors.New("boom")).Error(), "Internal")
	assert.NoError(t, ToStatus(nil))
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")
	cfg := LoadConfig()
	require.Error(t, cfg.Validate())

	t.Setenv("GEMINI_API_KEY", "k")
	cfg = LoadConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "k", cfg.LLM.APIKey)
}
