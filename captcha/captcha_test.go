package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled(t *testing.T) {
	assert.False(t, New("", "https://verify.test").Enabled())
	assert.True(t, New("secret", "https://verify.test").Enabled())

	var v *Verifier
	assert.False(t, v.Enabled())
}

func TestVerify(t *testing.T) {
	var form map[string]string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"secret":   r.FormValue("secret"),
			"response": r.FormValue("response"),
			"remoteip": r.FormValue("remoteip"),
		}
		json.NewEncoder(w).Encode(map[string]any{"success": r.FormValue("response") == "good"})
	}))
	defer provider.Close()

	v := New("top-secret", provider.URL)

	require.NoError(t, v.Verify(context.Background(), "good", "203.0.113.9"))
	assert.Equal(t, "top-secret", form["secret"])
	assert.Equal(t, "good", form["response"])
	assert.Equal(t, "203.0.113.9", form["remoteip"])

	err := v.Verify(context.Background(), "bad", "")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestVerifyRejectedWithCodes(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success":     false,
			"error-codes": []string{"invalid-input-response", "timeout-or-duplicate"},
		})
	}))
	defer provider.Close()

	err := New("s", provider.URL).Verify(context.Background(), "stale", "")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "invalid-input-response")
}

func TestVerifyProviderDown(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer provider.Close()

	err := New("s", provider.URL).Verify(context.Background(), "token", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}
