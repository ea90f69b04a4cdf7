package upload

import (
	"errors"
	"testing"

	"SahakariChat/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateExtensions(t *testing.T) {
	tests := []struct {
		filename string
		ok       bool
	}{
		{"report.pdf", true},
		{"data.xlsx", true},
		{"legacy.xls", true},
		{"report.PDF", true},
		{"DATA.XLSX", true},
		{"legacy.Xls", true},
		{"image.png", false},
		{"archive.zip", false},
		{"README", false},
		{"trailing.", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			err := Validate(tt.filename, 1024)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "must be a ValidationError")
			assert.Equal(t, tt.filename, verr.Filename)
		})
	}
}

func TestValidateSize(t *testing.T) {
	assert.NoError(t, Validate("report.pdf", config.MaxUploadBytes))

	err := Validate("report.pdf", config.MaxUploadBytes+1)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Reason, "10 MB")
}
