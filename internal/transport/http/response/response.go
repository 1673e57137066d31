package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/baechuer/taskdispatch/internal/domain"
	appCtx "github.com/baechuer/taskdispatch/internal/pkg/context"
)

// ErrorPayload is the wire shape of a failed request.
type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

// Envelope wraps every successful JSON response in a stable `data` key.
type Envelope struct {
	Data any `json:"data"`
}

func Err(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"
	var meta map[string]string

	var ae *domain.AppError
	if errors.As(err, &ae) {
		switch ae.Code {
		case domain.CodeValidation:
			status = http.StatusUnprocessableEntity
			code = "validation_error"
		case domain.CodeNotFound:
			status = http.StatusNotFound
			code = "not_found"
		case domain.CodeConflict:
			status = http.StatusConflict
			code = "conflict"
		case domain.CodeExternalUnavailable:
			status = http.StatusServiceUnavailable
			code = "external_unavailable"
		default:
			status = http.StatusUnprocessableEntity
			code = "validation_error"
		}

		message = ae.Message
		meta = ae.Meta
	}

	reqID := appCtx.GetRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Error: ErrorPayload{
			Code:      code,
			Message:   message,
			Meta:      meta,
			RequestID: reqID,
		},
	})
}

// Data writes a successful response wrapped in the `data` envelope.
func Data(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Data: payload})
}
