// Package email implements the send and status paths of the gateway: it
// validates and reshapes caller requests, starts provider send operations
// and resolves opaque message handles back to a delivery status.
package email

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/sungwon/email-gateway/internal/acs"
)

// Recipient is one addressee.
type Recipient struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
}

// Recipients groups the addressees of a message.
type Recipients struct {
	To  []Recipient `json:"to"`
	CC  []Recipient `json:"cc,omitempty"`
	BCC []Recipient `json:"bcc,omitempty"`
}

// Content holds the message bodies. At least one must be set.
type Content struct {
	PlainText string `json:"plainText,omitempty"`
	HTML      string `json:"html,omitempty"`
}

// Attachment is a base64-encoded file.
type Attachment struct {
	Name            string `json:"name"`
	ContentType     string `json:"contentType"`
	ContentInBase64 string `json:"contentInBase64"`
}

// SendRequest is the caller's simplified send request. It has no sender
// field; the sender always comes from configuration.
type SendRequest struct {
	Recipients  Recipients   `json:"recipients"`
	Subject     string       `json:"subject"`
	Content     Content      `json:"content"`
	ReplyTo     []Recipient  `json:"replyTo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ValidationError lists everything wrong with a SendRequest.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid send request: " + strings.Join(e.Details, "; ")
}

// Is reports ErrValidation so callers can match with errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks the request before any provider call. It returns a
// *ValidationError listing every problem, or nil.
func (r *SendRequest) Validate() error {
	var details []string

	if len(r.Recipients.To) == 0 {
		details = append(details, "recipients.to must contain at least one recipient")
	}
	details = appendAddressErrors(details, "recipients.to", r.Recipients.To)
	details = appendAddressErrors(details, "recipients.cc", r.Recipients.CC)
	details = appendAddressErrors(details, "recipients.bcc", r.Recipients.BCC)
	details = appendAddressErrors(details, "replyTo", r.ReplyTo)

	if strings.TrimSpace(r.Subject) == "" {
		details = append(details, "subject is required")
	}
	if r.Content.PlainText == "" && r.Content.HTML == "" {
		details = append(details, "content must include plainText or html")
	}

	for i, a := range r.Attachments {
		if a.Name == "" || a.ContentType == "" || a.ContentInBase64 == "" {
			details = append(details, fmt.Sprintf("attachments[%d] requires name, contentType and contentInBase64", i))
		}
	}

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

func appendAddressErrors(details []string, field string, rs []Recipient) []string {
	for i, rcpt := range rs {
		if err := validateAddress(rcpt.Address); err != nil {
			details = append(details, fmt.Sprintf("%s[%d].address %q is not a valid email address", field, i, rcpt.Address))
		}
	}
	return details
}

// validateAddress accepts a bare RFC 5322 addr-spec. Display-name forms
// such as "Bob <bob@example.com>" are rejected; the name has its own field.
func validateAddress(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return err
	}
	if parsed.Name != "" || !strings.EqualFold(parsed.Address, strings.TrimSpace(addr)) {
		return fmt.Errorf("address %q has extra text", addr)
	}
	return nil
}

// Build reshapes req into the provider wire message. The sender is always
// set from the sender argument. Build performs no validation and no I/O.
func Build(sender string, req *SendRequest) *acs.Message {
	msg := &acs.Message{
		SenderAddress: sender,
		Recipients: acs.Recipients{
			To:  toAddresses(req.Recipients.To),
			CC:  toAddresses(req.Recipients.CC),
			BCC: toAddresses(req.Recipients.BCC),
		},
		Content: acs.Content{
			Subject:   req.Subject,
			PlainText: req.Content.PlainText,
			HTML:      req.Content.HTML,
		},
		ReplyTo: toAddresses(req.ReplyTo),
	}

	if len(req.Attachments) > 0 {
		msg.Attachments = make([]acs.Attachment, len(req.Attachments))
		for i, a := range req.Attachments {
			msg.Attachments[i] = acs.Attachment{
				Name:            a.Name,
				ContentType:     a.ContentType,
				ContentInBase64: a.ContentInBase64,
			}
		}
	}
	return msg
}

func toAddresses(rs []Recipient) []acs.Address {
	if len(rs) == 0 {
		return nil
	}
	out := make([]acs.Address, len(rs))
	for i, r := range rs {
		out[i] = acs.Address{Address: r.Address, DisplayName: r.DisplayName}
	}
	return out
}

// addressList returns the plain To, Cc and Bcc addresses in order.
func (r *SendRequest) addressList() []string {
	out := make([]string, 0, len(r.Recipients.To)+len(r.Recipients.CC)+len(r.Recipients.BCC))
	for _, group := range [][]Recipient{r.Recipients.To, r.Recipients.CC, r.Recipients.BCC} {
		for _, rcpt := range group {
			out = append(out, rcpt.Address)
		}
	}
	return out
}
