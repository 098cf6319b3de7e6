package email

import (
	"errors"
	"strings"
	"testing"
)

func validRequest() *SendRequest {
	return &SendRequest{
		Recipients: Recipients{To: []Recipient{{Address: "a@b.com"}}},
		Subject:    "Test",
		Content:    Content{PlainText: "hi"},
	}
}

func TestSendRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *SendRequest)
		wantErr string
	}{
		{
			name:   "minimal valid request",
			mutate: func(r *SendRequest) {},
		},
		{
			name:   "html only",
			mutate: func(r *SendRequest) { r.Content = Content{HTML: "<p>hi</p>"} },
		},
		{
			name: "all recipient kinds",
			mutate: func(r *SendRequest) {
				r.Recipients.CC = []Recipient{{Address: "cc@example.com", DisplayName: "CC"}}
				r.Recipients.BCC = []Recipient{{Address: "bcc@example.com"}}
				r.ReplyTo = []Recipient{{Address: "reply@example.com"}}
			},
		},
		{
			name:    "no recipients",
			mutate:  func(r *SendRequest) { r.Recipients.To = nil },
			wantErr: "recipients.to must contain at least one recipient",
		},
		{
			name:    "cc without to",
			mutate:  func(r *SendRequest) { r.Recipients = Recipients{CC: []Recipient{{Address: "cc@example.com"}}} },
			wantErr: "recipients.to must contain at least one recipient",
		},
		{
			name:    "invalid to address",
			mutate:  func(r *SendRequest) { r.Recipients.To = []Recipient{{Address: "not-an-address"}} },
			wantErr: `recipients.to[0].address "not-an-address"`,
		},
		{
			name:    "display name form rejected",
			mutate:  func(r *SendRequest) { r.Recipients.To = []Recipient{{Address: "Bob <bob@example.com>"}} },
			wantErr: "recipients.to[0].address",
		},
		{
			name:    "invalid bcc address",
			mutate:  func(r *SendRequest) { r.Recipients.BCC = []Recipient{{Address: "@"}} },
			wantErr: "recipients.bcc[0].address",
		},
		{
			name:    "invalid reply-to",
			mutate:  func(r *SendRequest) { r.ReplyTo = []Recipient{{Address: ""}} },
			wantErr: "replyTo[0].address",
		},
		{
			name:    "blank subject",
			mutate:  func(r *SendRequest) { r.Subject = "   " },
			wantErr: "subject is required",
		},
		{
			name:    "no content",
			mutate:  func(r *SendRequest) { r.Content = Content{} },
			wantErr: "content must include plainText or html",
		},
		{
			name:    "incomplete attachment",
			mutate:  func(r *SendRequest) { r.Attachments = []Attachment{{Name: "a.txt"}} },
			wantErr: "attachments[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid request, got %v", err)
				}
				return
			}

			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			found := false
			for _, d := range ve.Details {
				if strings.Contains(d, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a detail containing %q, got %v", tt.wantErr, ve.Details)
			}
		})
	}
}

func TestSendRequest_ValidateCollectsAllProblems(t *testing.T) {
	err := (&SendRequest{}).Validate()

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Details) != 3 {
		t.Errorf("expected recipients, subject and content problems, got %v", ve.Details)
	}
}

func TestBuild_CopiesFields(t *testing.T) {
	req := &SendRequest{
		Recipients: Recipients{
			To:  []Recipient{{Address: "first@example.com", DisplayName: "First"}, {Address: "second@example.com"}},
			BCC: []Recipient{{Address: "hidden@example.com"}},
		},
		Subject:     "Quarterly report",
		Content:     Content{PlainText: "text", HTML: "<b>html</b>"},
		ReplyTo:     []Recipient{{Address: "reply@example.com"}},
		Attachments: []Attachment{{Name: "r.pdf", ContentType: "application/pdf", ContentInBase64: "JVBERi0="}},
	}

	msg := Build("DoNotReply@example.com", req)

	if msg.SenderAddress != "DoNotReply@example.com" {
		t.Errorf("sender = %q", msg.SenderAddress)
	}
	if len(msg.Recipients.To) != 2 ||
		msg.Recipients.To[0].Address != "first@example.com" || msg.Recipients.To[0].DisplayName != "First" ||
		msg.Recipients.To[1].Address != "second@example.com" {
		t.Errorf("to recipients not copied in order: %+v", msg.Recipients.To)
	}
	if msg.Recipients.CC != nil {
		t.Errorf("expected no cc, got %+v", msg.Recipients.CC)
	}
	if len(msg.Recipients.BCC) != 1 || msg.Recipients.BCC[0].Address != "hidden@example.com" {
		t.Errorf("bcc = %+v", msg.Recipients.BCC)
	}
	if msg.Content.Subject != "Quarterly report" || msg.Content.PlainText != "text" || msg.Content.HTML != "<b>html</b>" {
		t.Errorf("content = %+v", msg.Content)
	}
	if len(msg.ReplyTo) != 1 || msg.ReplyTo[0].Address != "reply@example.com" {
		t.Errorf("replyTo = %+v", msg.ReplyTo)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Name != "r.pdf" {
		t.Errorf("attachments = %+v", msg.Attachments)
	}
}

func TestBuild_SenderAlwaysFromConfiguration(t *testing.T) {
	senders := []string{"DoNotReply@example.com", "alerts@contoso.com", ""}
	requests := []*SendRequest{
		validRequest(),
		{Recipients: Recipients{To: []Recipient{{Address: "DoNotReply@attacker.test", DisplayName: "spoof"}}}},
		{},
	}

	for _, sender := range senders {
		for _, req := range requests {
			if got := Build(sender, req).SenderAddress; got != sender {
				t.Errorf("Build(%q) sender = %q", sender, got)
			}
		}
	}
}

func TestHandle(t *testing.T) {
	a := Handle("token-a")
	if !a.Equal(Handle("token-a")) {
		t.Error("identical handles must be equal")
	}
	if a.Equal(Handle("token-b")) {
		t.Error("different handles must not be equal")
	}
	if a.IsZero() || !Handle("").IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestStatusFromState(t *testing.T) {
	tests := []struct {
		state    string
		want     Status
		terminal bool
	}{
		{"NotStarted", StatusQueued, false},
		{"Running", StatusQueued, false},
		{"Succeeded", StatusSucceeded, true},
		{"Failed", StatusFailed, true},
		{"Canceled", StatusCanceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			got, ok := statusFromState(acsState(tt.state))
			if !ok || got != tt.want {
				t.Fatalf("statusFromState(%s) = %s, %v; want %s", tt.state, got, ok, tt.want)
			}
			if got.Terminal() != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got.Terminal(), tt.terminal)
			}
		})
	}

	if _, ok := statusFromState(acsState("Paused")); ok {
		t.Error("unknown state must not map")
	}
}
