package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidateURLShape(t *testing.T) {
	valid := []string{
		"https://amazon.com.br/dp/B08N5WRWNW",
		"http://mercadolivre.com.br",
		"https://s.shopee.com.br/1abcD?utm_source=x",
		"https://shope.ee/1abcD",
		"http://localhost:8080/p/1",
		"http://192.168.0.1/p/1",
		"HTTPS://AMAZON.COM.BR/dp/B08N5WRWNW",
	}
	for _, u := range valid {
		assert.NoError(t, ValidateURLShape(u), u)
	}

	invalid := []string{
		"",
		"not a url",
		"ftp://amazon.com.br/file",
		"amazon.com.br/dp/B08N5WRWNW",
		"https://",
		"https://no spaces allowed.com/x y",
	}
	for _, u := range invalid {
		assert.ErrorIs(t, ValidateURLShape(u), ErrInvalidLink, u)
	}
}

func TestCredentialBundleCookie(t *testing.T) {
	bundle := &CredentialBundle{Cookies: []Cookie{
		{Name: "ssid", Value: "abc"},
		{Name: "_csrf", Value: "def"},
	}}

	cookie, ok := bundle.Cookie("ssid")
	require.True(t, ok)
	assert.Equal(t, "abc", cookie.Value)

	_, ok = bundle.Cookie("missing")
	assert.False(t, ok)
}

func TestCredentialBundleEmpty(t *testing.T) {
	var nilBundle *CredentialBundle
	assert.True(t, nilBundle.Empty())
	assert.True(t, (&CredentialBundle{}).Empty())
	assert.False(t, (&CredentialBundle{Cookies: []Cookie{{Name: "a"}}}).Empty())
}

func TestLogConversionLevels(t *testing.T) {
	tests := []struct {
		status    string
		err       error
		wantLevel zapcore.Level
	}{
		{StatusSuccess, nil, zap.InfoLevel},
		{StatusFallback, errors.New("api down"), zap.WarnLevel},
		{LogStatusError, ErrRateLimited, zap.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			LogConversion(zap.New(core), Amazon, "in", "out", tt.status, tt.err)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, Amazon, fields["marketplace"])
			assert.Equal(t, "in", fields["original_link"])
			assert.Equal(t, tt.status, fields["status"])
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), fields["error"])
			} else {
				assert.NotContains(t, fields, "error")
			}
		})
	}
}
