package runtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/protogate/internal/runtime/auth"
	configpkg "github.com/drblury/protogate/internal/runtime/config"
	"github.com/drblury/protogate/internal/runtime/envelope"
)

const (
	testIssuer = "iam.example.org"
	testSecret = "secret"
)

func newTestHTTP(t *testing.T, pub *testPublisher, timeout time.Duration) http.Handler {
	t.Helper()
	req, store := newTestRequester(t, pub, timeout)
	if pub.onPublish == nil {
		pub.onPublish = respondWith(store, func(in envelope.Incoming) json.RawMessage { return in.Payload })
	}
	verifier, err := auth.NewJWTVerifier(map[string]auth.IssuerConfig{
		testIssuer: {Algorithm: auth.AlgorithmHS256, Key: testSecret},
	})
	require.NoError(t, err)

	return NewHTTPHandler(HTTPOptions{
		Requester: req,
		Verifier:  verifier,
		CORS: configpkg.CORSConfig{
			AllowOrigins: []string{"https://app.example.org"},
			MaxAge:       time.Hour,
		},
		Logger:         testLogger(),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		MetricsPath:    "/metrics",
	})
}

func bearer(t *testing.T, account string) string {
	t.Helper()
	token, err := auth.SignHS256([]byte(testSecret), testIssuer, mustAccount(t, account), time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

const validBody = `{"me":"web.12345.netology.ru","destination":"svc.example.org","method":"room.enter","payload":{"room":1}}`

func doRequest(h http.Handler, authorization, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, RequestPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problemBody {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p problemBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHTTP_RequestSuccess(t *testing.T) {
	h := newTestHTTP(t, &testPublisher{}, time.Second)

	rec := doRequest(h, bearer(t, "12345.netology.ru"), validBody)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"room":1}`, rec.Body.String())
}

func TestHTTP_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		pub    *testPublisher
		auth   func(t *testing.T) string
		body   string
		status int
		kind   string
	}{
		{
			name:   "missing token",
			pub:    &testPublisher{},
			auth:   func(*testing.T) string { return "" },
			body:   validBody,
			status: http.StatusUnauthorized,
			kind:   KindUnauthorized,
		},
		{
			name:   "invalid token",
			pub:    &testPublisher{},
			auth:   func(*testing.T) string { return "Bearer nope" },
			body:   validBody,
			status: http.StatusUnauthorized,
			kind:   KindUnauthorized,
		},
		{
			name:   "malformed body",
			pub:    &testPublisher{},
			auth:   func(t *testing.T) string { return bearer(t, "12345.netology.ru") },
			body:   `{"me":`,
			status: http.StatusBadRequest,
			kind:   KindInvalidBody,
		},
		{
			name:   "invalid identity",
			pub:    &testPublisher{},
			auth:   func(t *testing.T) string { return bearer(t, "12345.netology.ru") },
			body:   `{"me":"nodots","destination":"svc.example.org","method":"m","payload":{}}`,
			status: http.StatusBadRequest,
			kind:   KindInvalidBody,
		},
		{
			name:   "missing method",
			pub:    &testPublisher{},
			auth:   func(t *testing.T) string { return bearer(t, "12345.netology.ru") },
			body:   `{"me":"web.12345.netology.ru","destination":"svc.example.org","payload":{}}`,
			status: http.StatusBadRequest,
			kind:   KindInvalidBody,
		},
		{
			name:   "identity mismatch",
			pub:    &testPublisher{},
			auth:   func(t *testing.T) string { return bearer(t, "777.netology.ru") },
			body:   validBody,
			status: http.StatusForbidden,
			kind:   KindRequestError,
		},
		{
			name:   "publish failure",
			pub:    &testPublisher{err: errors.New("broker down")},
			auth:   func(t *testing.T) string { return bearer(t, "12345.netology.ru") },
			body:   validBody,
			status: http.StatusUnprocessableEntity,
			kind:   KindRequestError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHTTP(t, tt.pub, time.Second)
			rec := doRequest(h, tt.auth(t), tt.body)

			assert.Equal(t, tt.status, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.kind, p.Type)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "Error sending a request", p.Title)
			assert.NotEmpty(t, p.Detail)
		})
	}
}

func TestHTTP_Timeout(t *testing.T) {
	pub := &testPublisher{}
	pub.onPublish = func(string, *message.Message) {}
	h := newTestHTTP(t, pub, 20*time.Millisecond)

	rec := doRequest(h, bearer(t, "12345.netology.ru"), validBody)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, KindRequestError, p.Type)
	assert.Equal(t, "timeout on an outgoing HTTP response", p.Detail)
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	h := newTestHTTP(t, &testPublisher{}, time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestHTTP_CORSPreflight(t *testing.T) {
	h := newTestHTTP(t, &testPublisher{}, time.Second)

	req := httptest.NewRequest(http.MethodOptions, RequestPath, nil)
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization, Content-Length, Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestHTTP_CORSRejectsUnknownOrigin(t *testing.T) {
	h := newTestHTTP(t, &testPublisher{}, time.Second)

	req := httptest.NewRequest(http.MethodOptions, RequestPath, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTP_CORSDecoratesActualRequest(t *testing.T) {
	h := newTestHTTP(t, &testPublisher{}, time.Second)

	req := httptest.NewRequest(http.MethodPost, RequestPath, strings.NewReader(validBody))
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Authorization", bearer(t, "12345.netology.ru"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
