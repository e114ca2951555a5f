package runtime

import (
	"fmt"
	"net/http"

	"github.com/drblury/protogate/internal/runtime/jsoncodec"
)

// Problem kinds reported to HTTP callers.
const (
	KindRequestError = "request_error"
	KindInvalidBody  = "invalid_body"
	KindUnauthorized = "unauthorized"
)

const requestErrorTitle = "Error sending a request"

// Error is a gateway failure surfaced to an HTTP caller as
// application/problem+json.
type Error struct {
	Kind   string
	Status int
	Title  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Title, e.Status, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newRequestError(status int, detail string, err error) *Error {
	return &Error{
		Kind:   KindRequestError,
		Status: status,
		Title:  requestErrorTitle,
		Detail: detail,
		Err:    err,
	}
}

// NewValidationError reports a caller whose body names another account.
func NewValidationError(detail string) *Error {
	return newRequestError(http.StatusForbidden, detail, nil)
}

// NewPublishError reports a failure to acquire the publish gate or to publish.
func NewPublishError(err error) *Error {
	return newRequestError(http.StatusUnprocessableEntity, err.Error(), err)
}

// NewTimeoutError reports a request whose response did not arrive in time.
func NewTimeoutError(err error) *Error {
	return newRequestError(http.StatusGatewayTimeout, "timeout on an outgoing HTTP response", err)
}

type problemBody struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// WriteProblem renders e as application/problem+json.
func WriteProblem(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(e.Status)
	_ = jsoncodec.Encode(w, problemBody{
		Type:   e.Kind,
		Title:  e.Title,
		Detail: e.Detail,
		Status: e.Status,
	})
}
