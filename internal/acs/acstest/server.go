// Package acstest provides an in-process fake of the ACS Email REST API
// for tests.
package acstest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sungwon/email-gateway/internal/acs"
)

// AccessKey is the raw access key accepted by every fake server.
var AccessKey = []byte("acstest-access-key")

type operation struct {
	status  acs.OperationStatus
	message acs.Message
}

// Server is a fake ACS resource. Operations start Running and stay there
// until Complete is called.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	operations map[string]*operation
	order      []string
	sendFail   *failure
	pollFail   *failure
	polls      int
}

type failure struct {
	status  int
	code    string
	message string
}

// NewServer starts a fake ACS server. Call Close when done.
func NewServer() *Server {
	s := &Server{operations: make(map[string]*operation)}

	r := chi.NewRouter()
	r.Post("/emails:send", s.handleSend)
	r.Get("/emails/operations/{id}", s.handleOperation)
	s.Server = httptest.NewServer(r)
	return s
}

// ConnectionString returns a connection string pointing at this server.
func (s *Server) ConnectionString() string {
	return fmt.Sprintf("endpoint=%s/;accesskey=%s", s.URL, base64.StdEncoding.EncodeToString(AccessKey))
}

// Complete moves an operation to a terminal state.
func (s *Server) Complete(id string, state acs.OperationState, detail *acs.ErrorDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.operations[id]; ok {
		op.status.Status = state
		op.status.Error = detail
	}
}

// Forget drops an operation, simulating the end of its retention window.
func (s *Server) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.operations, id)
}

// FailSends makes every following send answer with the given error.
func (s *Server) FailSends(status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendFail = &failure{status: status, code: code, message: message}
}

// FailPolls makes every following status request answer with the given error.
func (s *Server) FailPolls(status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollFail = &failure{status: status, code: code, message: message}
}

// Messages returns the accepted messages in arrival order.
func (s *Server) Messages() []acs.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]acs.Message, 0, len(s.order))
	for _, id := range s.order {
		if op, ok := s.operations[id]; ok {
			out = append(out, op.message)
		}
	}
	return out
}

// OperationIDs returns the IDs of accepted operations in arrival order.
func (s *Server) OperationIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Polls returns how many status requests reached the server.
func (s *Server) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "unreadable body")
		return
	}
	if !verifySignature(r, body) {
		writeError(w, http.StatusUnauthorized, "Denied", "Denied by the resource provider.")
		return
	}
	if r.URL.Query().Get("api-version") == "" {
		writeError(w, http.StatusBadRequest, "MissingApiVersionParameter", "api-version is required")
		return
	}

	s.mu.Lock()
	fail := s.sendFail
	s.mu.Unlock()
	if fail != nil {
		writeError(w, fail.status, fail.code, fail.message)
		return
	}

	var msg acs.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "invalid JSON")
		return
	}
	if msg.SenderAddress == "" || len(msg.Recipients.To) == 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "senderAddress and recipients.to are required")
		return
	}

	id := r.Header.Get("Operation-Id")
	if id == "" {
		id = uuid.New().String()
	}
	status := acs.OperationStatus{ID: id, Status: acs.StateRunning}

	s.mu.Lock()
	if _, exists := s.operations[id]; !exists {
		s.order = append(s.order, id)
	}
	s.operations[id] = &operation{status: status, message: msg}
	s.mu.Unlock()

	w.Header().Set("Operation-Location", fmt.Sprintf("%s/emails/operations/%s?api-version=%s", s.URL, id, r.URL.Query().Get("api-version")))
	w.Header().Set("Retry-After", "5")
	writeJSON(w, http.StatusAccepted, status)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	if !verifySignature(r, nil) {
		writeError(w, http.StatusUnauthorized, "Denied", "Denied by the resource provider.")
		return
	}

	s.mu.Lock()
	s.polls++
	fail := s.pollFail
	op, ok := s.operations[chi.URLParam(r, "id")]
	var status acs.OperationStatus
	if ok {
		status = op.status
	}
	s.mu.Unlock()

	if fail != nil {
		writeError(w, fail.status, fail.code, fail.message)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "operation not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// verifySignature recomputes the HMAC-SHA256 shared-key signature.
func verifySignature(r *http.Request, body []byte) bool {
	sum := sha256.Sum256(body)
	contentHash := base64.StdEncoding.EncodeToString(sum[:])
	if r.Header.Get("x-ms-content-sha256") != contentHash {
		return false
	}

	const prefix = "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return false
	}

	stringToSign := r.Method + "\n" + r.URL.RequestURI() + "\n" + r.Header.Get("x-ms-date") + ";" + r.Host + ";" + contentHash
	mac := hmac.New(sha256.New, AccessKey)
	mac.Write([]byte(stringToSign))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.TrimPrefix(auth, prefix)), []byte(want))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]acs.ErrorDetail{"error": {Code: code, Message: message}})
}
