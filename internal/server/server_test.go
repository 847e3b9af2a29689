package server_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgrijalva/jwt-go"
	jsoniter "github.com/json-iterator/go"
	"github.com/sensorhub/onboarding/internal/core"
	"github.com/sensorhub/onboarding/internal/server"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()

	c, err := core.New(context.Background(), core.Config{
		LedgerBackend:     core.LedgerMemory,
		AdapterBackend:    core.AdaptersMemory,
		CertificateBucket: "certificates-test",
		RootTopic:         "data/#",
		JWTSecret:         secret,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to initialize core: %v", err)
	}

	return server.NewRouter(c)
}

func doJSON(t *testing.T, h http.Handler, method, target, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	response := make(map[string]interface{})
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &response)
	}

	return w, response
}

func TestOnboardEndpointLifecycle(t *testing.T) {
	a := assert.New(t)

	h := newTestRouter(t, "")

	body := map[string]string{
		"device_group":    "sensors",
		"topic_namespace": "data/sensors/SN-001",
	}

	//---------------------------------------------------------------------------
	// fresh onboarding
	//---------------------------------------------------------------------------
	w, response := doJSON(t, h, http.MethodPost, "/api/v1/onboard/SN-001", "", body)
	a.Equal(http.StatusOK, w.Code)
	a.NotEmpty(response["request_id"])

	result, ok := response["result"].(map[string]interface{})
	a.True(ok)
	a.Equal("id-001", result["identity_id"])
	a.Equal("pol-sensors-data", result["policy_name"])
	a.Equal("thing-SN-001", result["registry_entry_name"])
	a.NotEmpty(result["certificate_pem"])
	a.NotEmpty(result["private_key_pem"])

	//---------------------------------------------------------------------------
	// replay returns identifiers without key material
	//---------------------------------------------------------------------------
	w, response = doJSON(t, h, http.MethodPost, "/api/v1/onboard/SN-001", "", body)
	a.Equal(http.StatusOK, w.Code)

	result, ok = response["result"].(map[string]interface{})
	a.True(ok)
	a.Equal("id-001", result["identity_id"])
	a.Equal(true, result["replayed"])
	a.Nil(result["private_key_pem"])

	//---------------------------------------------------------------------------
	// record lookup
	//---------------------------------------------------------------------------
	w, response = doJSON(t, h, http.MethodGet, "/api/v1/onboard/sensors/SN-001", "", nil)
	a.Equal(http.StatusOK, w.Code)

	result, ok = response["result"].(map[string]interface{})
	a.True(ok)
	a.Equal("COMPLETE", result["status"])
	a.Nil(result["private_key_pem"])

	//---------------------------------------------------------------------------
	// deprovisioning
	//---------------------------------------------------------------------------
	w, _ = doJSON(t, h, http.MethodDelete, "/api/v1/onboard/sensors/SN-001", "", nil)
	a.Equal(http.StatusOK, w.Code)

	w, _ = doJSON(t, h, http.MethodGet, "/api/v1/onboard/sensors/SN-001", "", nil)
	a.Equal(http.StatusNotFound, w.Code)

	// idempotent delete
	w, _ = doJSON(t, h, http.MethodDelete, "/api/v1/onboard/sensors/SN-001", "", nil)
	a.Equal(http.StatusOK, w.Code)
}

func TestOnboardEndpointValidation(t *testing.T) {
	a := assert.New(t)

	h := newTestRouter(t, "")

	// namespace outside the configured root topic
	w, _ := doJSON(t, h, http.MethodPost, "/api/v1/onboard/SN-001", "", map[string]string{
		"device_group":    "sensors",
		"topic_namespace": "telemetry/sensors/SN-001",
	})
	a.Equal(http.StatusBadRequest, w.Code)

	// malformed payload
	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboard/SN-001", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	a.Equal(http.StatusBadRequest, rec.Code)
}

func TestOnboardEndpointAuth(t *testing.T) {
	a := assert.New(t)

	const secret = "test-secret"

	h := newTestRouter(t, secret)

	body := map[string]string{
		"device_group":    "sensors",
		"topic_namespace": "data/sensors/SN-001",
	}

	// no token
	w, _ := doJSON(t, h, http.MethodPost, "/api/v1/onboard/SN-001", "", body)
	a.Equal(http.StatusUnauthorized, w.Code)

	// garbage token
	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/onboard/SN-001", "not-a-token", body)
	a.Equal(http.StatusUnauthorized, w.Code)

	// properly signed token
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "installer-1"}).
		SignedString([]byte(secret))
	a.NoError(err)

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/onboard/SN-001", token, body)
	a.Equal(http.StatusOK, w.Code)
}
