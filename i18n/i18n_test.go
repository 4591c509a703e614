package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogsHaveSameKeys(t *testing.T) {
	require.NoError(t, LoadTranslations())
	for key := range translations["en"] {
		_, ok := translations["es"][key]
		assert.True(t, ok, "es catalog is missing %q", key)
	}
	for key := range translations["es"] {
		_, ok := translations["en"][key]
		assert.True(t, ok, "en catalog is missing %q", key)
	}
}

func TestT(t *testing.T) {
	assert.Equal(t, "Credenciales inválidas", T("es", "InvalidCredentials"))
	assert.Equal(t, "Invalid email or password", T("en", "InvalidCredentials"))
	assert.Equal(t, "Invalid email or password", T("de", "InvalidCredentials"))
	assert.Equal(t, "NoSuchKey", T("es", "NoSuchKey"))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"es-MX,es;q=0.9,en;q=0.8", "es"},
		{"fr-CH, fr;q=0.9, en;q=0.8", "en"},
		{"de, ES;q=0.5", "es"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Accept-Language", tt.header)
		}
		assert.Equal(t, tt.want, DetectLanguage(r), tt.header)
	}
}
