package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sungwon/email-gateway/internal/email"
	"github.com/sungwon/email-gateway/internal/logger"
)

// EmailSender starts a send and returns its handle. *email.Gateway implements it.
type EmailSender interface {
	Send(ctx context.Context, req *email.SendRequest) (email.Handle, error)
}

// StatusResolver resolves a handle to its delivery status. *email.Resolver implements it.
type StatusResolver interface {
	Resolve(ctx context.Context, h email.Handle) (*email.StatusResult, error)
}

// sendResponse is the JSON response for POST /api/email.
type sendResponse struct {
	MessageID string `json:"messageId"`
}

// statusRequest is the JSON body for POST /api/email/status.
type statusRequest struct {
	// MessageID is kept raw: older clients sometimes sent the handle as a
	// JSON value instead of a string.
	MessageID json.RawMessage `json:"messageId"`
}

// handle extracts the handle. Non-string values are passed on verbatim and
// fail resolution as invalid handles.
func (s statusRequest) handle() email.Handle {
	if len(s.MessageID) == 0 || string(s.MessageID) == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(s.MessageID, &str); err == nil {
		return email.Handle(str)
	}
	return email.Handle(s.MessageID)
}

// SendEmailHandler handles POST /api/email.
// Returns 200 {"messageId": "..."} once the provider has accepted the send.
func SendEmailHandler(sender EmailSender, failures failureWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req email.SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			failures.write(w, r, decodeError(err))
			return
		}

		handle, err := sender.Send(r.Context(), &req)
		if err != nil {
			failures.write(w, r, err)
			return
		}

		log := logger.FromContext(r.Context())
		log.Debug().Int("handle_len", len(handle)).Msg("message handle issued")

		respondJSON(w, http.StatusOK, sendResponse{MessageID: handle.String()})
	}
}

// EmailStatusHandler handles POST /api/email/status.
// Returns 200 {"id","status","error"?} with the status read from the provider.
func EmailStatusHandler(resolver StatusResolver, failures failureWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			failures.write(w, r, decodeError(err))
			return
		}

		h := req.handle()
		if h.IsZero() {
			failures.write(w, r, errMissingHandle)
			return
		}

		result, err := resolver.Resolve(r.Context(), h)
		if err != nil {
			failures.write(w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}
