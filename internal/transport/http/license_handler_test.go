package http

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenser/internal/config"
	"licenser/internal/security"
	"licenser/internal/services"
)

func testRouter(t *testing.T, priv crypto.PrivateKey, pub crypto.PublicKey, limits config.LimitsConfig) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := services.NewLicenseService(security.NewECDSASigner(), priv, pub, logger, nil)
	cfg := config.Default()
	cfg.Limits = limits
	return NewRouter(&cfg, svc, logger, nil)
}

func defaultTestRouter(t *testing.T) http.Handler {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)
	return testRouter(t, priv, &priv.PublicKey, config.LimitsConfig{Enabled: false})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestIssueThenVerify(t *testing.T) {
	router := defaultTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/license/issue", map[string]any{
		"kind":     "Standard",
		"quantity": 3,
		"customer": map[string]string{"name": "Acme", "email": "ops@acme.example"},
		"features": map[string]string{"export": "csv"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	issued := decodeBody(t, rec)
	licenseText, _ := issued["license"].(string)
	require.NotEmpty(t, licenseText)
	require.NotEmpty(t, issued["id"])

	rec = doJSON(t, router, http.MethodPost, "/api/license/verify", map[string]string{
		"license": licenseText,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody(t, rec)
	assert.Equal(t, true, result["valid"])
}

func TestIssueRejectsUnknownKind(t *testing.T) {
	router := defaultTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/license/issue", map[string]any{
		"kind": "Platinum",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestIssueRejectsMalformedJSON(t *testing.T) {
	router := defaultTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/license/issue", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssueDisabledWithoutKey(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)
	router := testRouter(t, nil, &priv.PublicKey, config.LimitsConfig{Enabled: false})

	rec := doJSON(t, router, http.MethodPost, "/api/license/issue", map[string]any{
		"kind": "Trial",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
}

func TestVerifyRequiresLicense(t *testing.T) {
	router := defaultTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/license/verify", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyMalformedDocument(t *testing.T) {
	router := defaultTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/license/verify", map[string]string{
		"license": "<License><Quantity>lots</Quantity></License>",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	errObj, _ := body["error"].(map[string]any)
	require.NotNil(t, errObj)
	assert.Equal(t, "MALFORMED_LICENSE", errObj["error_code"])
}

func TestInspect(t *testing.T) {
	router := defaultTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/license/issue", map[string]any{
		"kind":     "Trial",
		"quantity": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	issued := decodeBody(t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/license/inspect", map[string]string{
		"license": issued["license"].(string),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	info := decodeBody(t, rec)
	assert.Equal(t, "Trial", info["kind"])
	assert.Equal(t, float64(1), info["quantity"])
	assert.Equal(t, true, info["signed"])
}

func TestHealthz(t *testing.T) {
	router := defaultTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
}

func TestRateLimit(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)
	router := testRouter(t, priv, &priv.PublicKey, config.LimitsConfig{
		Enabled: true,
		RPS:     0.001,
		Burst:   1,
	})

	first := doJSON(t, router, http.MethodPost, "/api/license/verify", map[string]string{
		"license": "<License></License>",
	})
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := doJSON(t, router, http.MethodPost, "/api/license/verify", map[string]string{
		"license": "<License></License>",
	})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
