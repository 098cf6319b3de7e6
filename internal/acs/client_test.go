package acs_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sungwon/email-gateway/internal/acs"
	"github.com/sungwon/email-gateway/internal/acs/acstest"
)

func newClient(t *testing.T, srv *acstest.Server) *acs.Client {
	t.Helper()
	client, err := acs.NewClient(acs.Config{ConnectionString: srv.ConnectionString()}, acs.NewHTTPClient(5*time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func testMessage() *acs.Message {
	return &acs.Message{
		SenderAddress: "DoNotReply@example.com",
		Recipients:    acs.Recipients{To: []acs.Address{{Address: "a@b.com", DisplayName: "A"}}},
		Content:       acs.Content{Subject: "Test", PlainText: "hi"},
	}
}

func TestNewClient_InvalidConnectionString(t *testing.T) {
	_, err := acs.NewClient(acs.Config{ConnectionString: "nonsense"}, acs.NewHTTPClient(time.Second))
	if !errors.Is(err, acs.ErrInvalidConnectionString) {
		t.Fatalf("expected ErrInvalidConnectionString, got %v", err)
	}
}

func TestBeginSend_ReturnsWithoutWaiting(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()
	client := newClient(t, srv)

	poller, err := client.BeginSend(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("BeginSend: %v", err)
	}

	if poller.ID() == "" {
		t.Error("expected operation id")
	}
	if poller.ResumeToken() == "" {
		t.Error("expected resume token")
	}
	if poller.RetryAfter() != 5*time.Second {
		t.Errorf("expected retry after 5s, got %v", poller.RetryAfter())
	}
	if srv.Polls() != 0 {
		t.Errorf("expected no status polling during send, got %d polls", srv.Polls())
	}

	msgs := srv.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message at the provider, got %d", len(msgs))
	}
	if msgs[0].SenderAddress != "DoNotReply@example.com" || msgs[0].Content.Subject != "Test" {
		t.Errorf("unexpected message at provider: %+v", msgs[0])
	}
}

func TestBeginSend_ProviderRejection(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()
	srv.FailSends(http.StatusBadRequest, "InvalidRecipient", "bad recipient")
	client := newClient(t, srv)

	_, err := client.BeginSend(context.Background(), testMessage())

	var re *acs.ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("expected ResponseError, got %v", err)
	}
	if re.Code != "InvalidRecipient" || !re.Permanent {
		t.Errorf("unexpected classification: %+v", re)
	}
}

func TestBeginSend_WrongAccessKeyIsDenied(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()

	cs := strings.Replace(srv.ConnectionString(),
		base64.StdEncoding.EncodeToString(acstest.AccessKey),
		base64.StdEncoding.EncodeToString([]byte("wrong")), 1)
	client, err := acs.NewClient(acs.Config{ConnectionString: cs}, acs.NewHTTPClient(time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.BeginSend(context.Background(), testMessage())
	var re *acs.ResponseError
	if !errors.As(err, &re) || re.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 ResponseError, got %v", err)
	}
}

func TestResumePoller_RoundTrip(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()
	client := newClient(t, srv)
	ctx := context.Background()

	poller, err := client.BeginSend(ctx, testMessage())
	if err != nil {
		t.Fatalf("BeginSend: %v", err)
	}

	resumed, err := client.ResumePoller(poller.ResumeToken())
	if err != nil {
		t.Fatalf("ResumePoller: %v", err)
	}
	if resumed.ID() != poller.ID() {
		t.Errorf("expected id %s, got %s", poller.ID(), resumed.ID())
	}
	if resumed.ResumeToken() != poller.ResumeToken() {
		t.Error("expected resumed poller to keep the token verbatim")
	}

	status, err := resumed.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.Status != acs.StateRunning {
		t.Errorf("expected Running, got %s", status.Status)
	}

	srv.Complete(poller.ID(), acs.StateFailed, &acs.ErrorDetail{Code: "Bounced", Message: "mailbox full"})

	status, err = resumed.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.Status != acs.StateFailed || status.Error == nil || status.Error.Code != "Bounced" {
		t.Errorf("unexpected terminal status: %+v", status)
	}
	if !status.Status.Terminal() {
		t.Error("expected Failed to be terminal")
	}
}

func TestResumePoller_FreshClientSameResource(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()
	ctx := context.Background()

	poller, err := newClient(t, srv).BeginSend(ctx, testMessage())
	if err != nil {
		t.Fatalf("BeginSend: %v", err)
	}

	// A restarted process builds a new client from the same configuration.
	resumed, err := newClient(t, srv).ResumePoller(poller.ResumeToken())
	if err != nil {
		t.Fatalf("ResumePoller on fresh client: %v", err)
	}
	if _, err := resumed.Poll(ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}
}

func TestResumePoller_InvalidTokens(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()
	client := newClient(t, srv)

	poller, err := client.BeginSend(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("BeginSend: %v", err)
	}
	token := poller.ResumeToken()

	for name, candidate := range map[string]string{
		"garbage":   "garbage",
		"truncated": token[:len(token)/2],
		"appended":  token + "x",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := client.ResumePoller(candidate); !errors.Is(err, acs.ErrInvalidResumeToken) {
				t.Fatalf("expected ErrInvalidResumeToken, got %v", err)
			}
		})
	}

	if srv.Polls() != 0 {
		t.Errorf("expected invalid tokens to be rejected without contacting the provider, got %d polls", srv.Polls())
	}
}

func TestResumePoller_ForeignResource(t *testing.T) {
	srvA := acstest.NewServer()
	defer srvA.Close()
	srvB := acstest.NewServer()
	defer srvB.Close()

	poller, err := newClient(t, srvA).BeginSend(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("BeginSend: %v", err)
	}

	if _, err := newClient(t, srvB).ResumePoller(poller.ResumeToken()); !errors.Is(err, acs.ErrInvalidResumeToken) {
		t.Fatalf("expected token from another resource to be rejected, got %v", err)
	}
}

func TestPoll_OperationForgotten(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()
	client := newClient(t, srv)
	ctx := context.Background()

	poller, err := client.BeginSend(ctx, testMessage())
	if err != nil {
		t.Fatalf("BeginSend: %v", err)
	}
	srv.Forget(poller.ID())

	_, err = poller.Poll(ctx)
	if !errors.Is(err, acs.ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
	var re *acs.ResponseError
	if !errors.As(err, &re) || re.StatusCode != http.StatusNotFound {
		t.Errorf("expected wrapped 404 ResponseError, got %v", err)
	}
}

func TestPoll_ProviderOutage(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()
	client := newClient(t, srv)
	ctx := context.Background()

	poller, err := client.BeginSend(ctx, testMessage())
	if err != nil {
		t.Fatalf("BeginSend: %v", err)
	}
	srv.FailPolls(http.StatusServiceUnavailable, "ServiceUnavailable", "try later")

	_, err = poller.Poll(ctx)
	if errors.Is(err, acs.ErrOperationNotFound) {
		t.Fatal("outage must not look like a missing operation")
	}
	var re *acs.ResponseError
	if !errors.As(err, &re) || re.StatusCode != http.StatusServiceUnavailable || re.Permanent {
		t.Fatalf("expected transient 503 ResponseError, got %v", err)
	}
}

func TestEndpoint(t *testing.T) {
	srv := acstest.NewServer()
	defer srv.Close()

	if got := newClient(t, srv).Endpoint(); got != srv.URL {
		t.Errorf("expected endpoint %s, got %s", srv.URL, got)
	}
}
