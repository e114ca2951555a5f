package runtime

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/drblury/protogate/internal/runtime/auth"
	configpkg "github.com/drblury/protogate/internal/runtime/config"
	"github.com/drblury/protogate/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/protogate/internal/runtime/logging"
)

// RequestPath is the route of the request API.
const RequestPath = "/api/v1/request"

const maxRequestBody = 1 << 20

// HTTPOptions configures the gateway HTTP handler.
type HTTPOptions struct {
	Requester *Requester
	Verifier  auth.Verifier
	CORS      configpkg.CORSConfig
	Logger    loggingpkg.ServiceLogger
	Metrics   *GatewayMetrics

	// MetricsHandler is mounted on MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewHTTPHandler builds the chi router serving the request API.
func NewHTTPHandler(opts HTTPOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = loggingpkg.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(opts.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.MetricsHandler)
	}

	h := &requestHandler{
		requester: opts.Requester,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	r.With(auth.Middleware(opts.Verifier, h.unauthorized)).Post(RequestPath, h.ServeHTTP)

	return r
}

type requestHandler struct {
	requester *Requester
	logger    loggingpkg.ServiceLogger
	metrics   *GatewayMetrics
}

func (h *requestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	caller, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.fail(w, start, &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Title: requestErrorTitle, Detail: auth.ErrMissingToken.Error()})
		return
	}

	var body RequestBody
	if err := jsoncodec.Decode(http.MaxBytesReader(w, r.Body, maxRequestBody), &body); err != nil {
		h.fail(w, start, invalidBody(err.Error()))
		return
	}
	if detail := validateBody(body); detail != "" {
		h.fail(w, start, invalidBody(detail))
		return
	}

	payload, err := h.requester.Request(r.Context(), caller, body)
	if err != nil {
		var gwErr *Error
		if !errors.As(err, &gwErr) {
			gwErr = NewPublishError(err)
		}
		h.fail(w, start, gwErr)
		return
	}

	h.metrics.ObserveRequest(OutcomeOK, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *requestHandler) unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	h.fail(w, time.Now(), &Error{
		Kind:   KindUnauthorized,
		Status: http.StatusUnauthorized,
		Title:  requestErrorTitle,
		Detail: err.Error(),
		Err:    err,
	})
}

func (h *requestHandler) fail(w http.ResponseWriter, start time.Time, e *Error) {
	h.metrics.ObserveRequest(outcomeOf(e), time.Since(start))
	if e.Status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", e, loggingpkg.LogFields{"status": e.Status})
	} else {
		h.logger.Debug("Request rejected", loggingpkg.LogFields{"status": e.Status, "detail": e.Detail})
	}
	WriteProblem(w, e)
}

func invalidBody(detail string) *Error {
	return &Error{
		Kind:   KindInvalidBody,
		Status: http.StatusBadRequest,
		Title:  requestErrorTitle,
		Detail: detail,
	}
}

func validateBody(body RequestBody) string {
	switch {
	case body.Me.IsZero():
		return "me is required"
	case body.Destination.IsZero():
		return "destination is required"
	case body.Method == "":
		return "method is required"
	case len(body.Payload) == 0:
		return "payload is required"
	}
	return ""
}

var (
	corsMethods = strings.Join([]string{http.MethodPost}, ", ")
	corsHeaders = strings.Join([]string{"Authorization", "Content-Length", "Content-Type"}, ", ")
)

// corsMiddleware answers preflight requests and decorates responses for the
// configured origins. "*" allows every origin; the request origin is echoed
// back since credentials are allowed.
func corsMiddleware(cfg configpkg.CORSConfig) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, ok := allowed[origin]
			if !ok && !allowAll {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
