package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/email-gateway/internal/acs"
	"github.com/sungwon/email-gateway/internal/acs/acstest"
	"github.com/sungwon/email-gateway/internal/email"
	"github.com/sungwon/email-gateway/internal/history"
	"github.com/sungwon/email-gateway/internal/msgstore"
)

const testSender = "DoNotReply@example.com"

type testEnv struct {
	router  *chi.Mux
	acs     *acstest.Server
	history history.Store
	archive msgstore.Store
}

func newTestEnv(t *testing.T, mutate func(cfg *RouterConfig)) *testEnv {
	t.Helper()

	srv := acstest.NewServer()
	t.Cleanup(srv.Close)

	client, err := acs.NewClient(acs.Config{ConnectionString: srv.ConnectionString()}, acs.NewHTTPClient(5*time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	hist := history.NewMemoryStore(100)
	archive, err := msgstore.NewLocalFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}
	cfg := RouterConfig{
		Sender:       email.NewGateway(client, testSender, archive, hist, zerolog.Nop()),
		Resolver:     email.NewResolver(client, zerolog.Nop()),
		History:      hist,
		Archive:      archive,
		MaxBodyBytes: 1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	router, err := NewRouter(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &testEnv{router: router, acs: srv, history: cfg.History, archive: cfg.Archive}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// send posts a valid message and returns the messageId.
func (e *testEnv) send(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/email", validBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("send: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp sendResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	return resp.MessageID
}

func validBody() map[string]interface{} {
	return map[string]interface{}{
		"recipients": map[string]interface{}{
			"to": []map[string]string{{"address": "a@b.com"}},
		},
		"subject": "Test",
		"content": map[string]string{"plainText": "hi"},
	}
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}
