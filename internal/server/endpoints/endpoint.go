package endpoints

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sensorhub/onboarding/internal/core"
	"github.com/sensorhub/onboarding/pkg/ledger"
	"github.com/sensorhub/onboarding/pkg/onboarding"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Endpoint struct {
	core    *core.Core
	name    string
	handler Handler
}

// Handler represents a custom handler
type Handler func(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, code int, err error)

type Response struct {
	RequestID     uuid.UUID     `json:"request_id"`
	Result        interface{}   `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"exec_time"`
}

func NewEndpoint(c *core.Core, h Handler, name string) (e Endpoint) {
	if c == nil {
		panic(core.ErrNilCore)
	}

	// basic validation
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		panic(errors.New("empty endpoint name"))
	}

	e = Endpoint{
		core:    c,
		name:    name,
		handler: h,
	}

	return e
}

func (e Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// generating request ID
	requestID := uuid.New()

	// injecting request ID into the context
	ctx := context.WithValue(r.Context(), CKRequestID, requestID)

	//---------------------------------------------------------------------------
	// processing request
	//---------------------------------------------------------------------------
	start := time.Now()

	// executing handler
	result, code, err := e.handler(ctx, e.core, w, r)

	// initializing response
	response := Response{
		RequestID:     requestID,
		Result:        result,
		ExecutionTime: time.Since(start),
	}

	if err != nil {
		if code == 0 {
			code = StatusCode(err)
		}

		response.Error = err.Error()
	}

	if code == 0 {
		code = http.StatusOK
	}

	// marshaling handler's result
	payload, merr := json.Marshal(response)
	if merr != nil {
		http.Error(
			w,
			errors.Wrap(merr, "failed to marshal server response").Error(),
			http.StatusInternalServerError,
		)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(code)
	w.Write(payload)
}

// StatusCode maps service errors onto HTTP status codes
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case onboarding.IsValidation(err):
		return http.StatusBadRequest
	case err == onboarding.ErrInProgress:
		return http.StatusConflict
	case err == onboarding.ErrProvisioningFailed:
		return http.StatusBadGateway
	case err == onboarding.ErrCompensationFailed:
		return http.StatusInternalServerError
	case err == ledger.ErrRecordNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
