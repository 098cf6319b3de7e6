package acs

// Message matches the ACS Email "send" JSON schema (api-version 2023-03-31).
type Message struct {
	SenderAddress                  string            `json:"senderAddress"`
	Recipients                     Recipients        `json:"recipients"`
	Content                        Content           `json:"content"`
	ReplyTo                        []Address         `json:"replyTo,omitempty"`
	Headers                        map[string]string `json:"headers,omitempty"`
	Attachments                    []Attachment      `json:"attachments,omitempty"`
	UserEngagementTrackingDisabled bool              `json:"userEngagementTrackingDisabled,omitempty"`
}

// Recipients groups the To, Cc and Bcc address lists.
type Recipients struct {
	To  []Address `json:"to"`
	CC  []Address `json:"cc,omitempty"`
	BCC []Address `json:"bcc,omitempty"`
}

// Address is a single email address with an optional display name.
type Address struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
}

// Content carries the subject and the plain text and/or HTML bodies.
type Content struct {
	Subject   string `json:"subject"`
	PlainText string `json:"plainText,omitempty"`
	HTML      string `json:"html,omitempty"`
}

// Attachment is a base64-encoded file attached to the message.
type Attachment struct {
	Name            string `json:"name"`
	ContentType     string `json:"contentType"`
	ContentInBase64 string `json:"contentInBase64"`
}

// OperationState is the lifecycle state of a send operation as reported by ACS.
type OperationState string

const (
	StateNotStarted OperationState = "NotStarted"
	StateRunning    OperationState = "Running"
	StateSucceeded  OperationState = "Succeeded"
	StateFailed     OperationState = "Failed"
	StateCanceled   OperationState = "Canceled"
)

// Terminal reports whether no further state change is expected.
func (s OperationState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled:
		return true
	}
	return false
}

// OperationStatus is the body of both the send response and the
// operation status response.
type OperationStatus struct {
	ID     string         `json:"id"`
	Status OperationState `json:"status"`
	Error  *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail is the ACS error object attached to failed operations and
// error responses.
type ErrorDetail struct {
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
	Target  string        `json:"target,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}
