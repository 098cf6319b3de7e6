package email

import (
	"testing"
	"time"

	"github.com/sungwon/email-gateway/internal/acs"
	"github.com/sungwon/email-gateway/internal/acs/acstest"
)

func acsState(s string) acs.OperationState { return acs.OperationState(s) }

// newTestClient returns a provider client wired to a fresh fake server.
func newTestClient(t *testing.T) (*acs.Client, *acstest.Server) {
	t.Helper()
	srv := acstest.NewServer()
	t.Cleanup(srv.Close)

	client, err := acs.NewClient(acs.Config{ConnectionString: srv.ConnectionString()}, acs.NewHTTPClient(5*time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}
