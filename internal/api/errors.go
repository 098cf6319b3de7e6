package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sungwon/email-gateway/internal/acs"
	"github.com/sungwon/email-gateway/internal/email"
	"github.com/sungwon/email-gateway/internal/logger"
)

var (
	errMalformedBody   = errors.New("request body must be a JSON object")
	errMissingHandle   = errors.New("messageId is required")
	errBodyTooLarge    = errors.New("request body too large")
	errHistoryDisabled = errors.New("message history is disabled")
	errHistoryNotFound = errors.New("no history entry for messageId")
)

// failureWriter turns handler errors into HTTP responses. In legacy mode
// every failure is reported as a bare 500.
type failureWriter struct {
	legacy bool
}

func (f failureWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status := f.statusFor(err)

	log := logger.FromContext(r.Context())
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")

	if f.legacy {
		respondInternalError(w)
		return
	}

	var ve *email.ValidationError
	switch {
	case errors.As(err, &ve):
		respondValidationErrors(w, ve.Details)
	case errors.Is(err, errMalformedBody):
		respondValidationErrors(w, []string{errMalformedBody.Error()})
	case errors.Is(err, errBodyTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "request_too_large")
	case errors.Is(err, email.ErrInvalidHandle), errors.Is(err, errMissingHandle):
		respondErrorMessage(w, http.StatusBadRequest, "invalid_message_id", invalidHandleMessage(err))
	case errors.Is(err, email.ErrUpstream):
		respondUpstreamError(w, upstreamMessage(err), !acs.IsPermanent(err))
	default:
		respondInternalError(w)
	}
}

func (f failureWriter) statusFor(err error) int {
	switch {
	case errors.Is(err, email.ErrValidation), errors.Is(err, errMalformedBody),
		errors.Is(err, email.ErrInvalidHandle), errors.Is(err, errMissingHandle):
		return http.StatusBadRequest
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, email.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func invalidHandleMessage(err error) string {
	switch {
	case errors.Is(err, errMissingHandle):
		return errMissingHandle.Error()
	case errors.Is(err, acs.ErrOperationNotFound):
		return "messageId refers to an operation the provider no longer knows"
	}
	return "messageId is not a valid message handle"
}

func upstreamMessage(err error) string {
	var re *acs.ResponseError
	if errors.As(err, &re) {
		if re.Code != "" {
			return fmt.Sprintf("email provider returned %d %s: %s", re.StatusCode, re.Code, re.Message)
		}
		return fmt.Sprintf("email provider returned %d", re.StatusCode)
	}
	return "email provider request failed"
}
