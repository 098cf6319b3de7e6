// Package acs is a small client for the Azure Communication Services Email
// REST API. It signs requests with the resource access key, starts send
// operations and resumes them later from an opaque resume token.
package acs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAPIVersion = "2023-03-31"

	sendPath          = "/emails:send"
	operationsPathFmt = "/emails/operations/%s"
)

// Config holds the settings needed to build a Client.
type Config struct {
	// ConnectionString is "endpoint=...;accesskey=..." as shown in the Azure portal.
	ConnectionString string
	// APIVersion defaults to DefaultAPIVersion.
	APIVersion string
	// TokenTTL bounds how long resume tokens are accepted. Zero means no bound.
	TokenTTL time.Duration
	// TokenSigningKey replaces the key derived from the access key when set.
	TokenSigningKey string
}

// Client talks to one ACS resource. It holds no per-request state and is
// safe for concurrent use.
type Client struct {
	endpoint   *url.URL
	apiVersion string
	http       HTTPClient
	signer     *signer
	tokens     *tokenCodec
}

// NewClient creates a Client from cfg. The HTTP client bounds every round
// trip with its own timeout.
func NewClient(cfg Config, httpClient HTTPClient) (*Client, error) {
	cs, err := ParseConnectionString(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	var tokenKey []byte
	if cfg.TokenSigningKey != "" {
		tokenKey = []byte(cfg.TokenSigningKey)
	} else if tokenKey, err = deriveTokenKey(cs.AccessKey); err != nil {
		return nil, err
	}

	return &Client{
		endpoint:   cs.Endpoint,
		apiVersion: apiVersion,
		http:       httpClient,
		signer:     &signer{key: cs.AccessKey, now: time.Now},
		tokens: &tokenCodec{
			key:      tokenKey,
			audience: cs.Endpoint.Host,
			ttl:      cfg.TokenTTL,
			now:      time.Now,
		},
	}, nil
}

// Endpoint returns the resource endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// BeginSend submits msg and returns as soon as ACS has accepted the send
// operation. It does not wait for delivery; use the returned Poller, or a
// Poller resumed from its token, to observe progress.
func (c *Client) BeginSend(ctx context.Context, msg *Message) (*Poller, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("acs: marshal message: %w", err)
	}

	operationID := uuid.New().String()
	resp, err := c.do(ctx, http.MethodPost, c.url(sendPath), map[string]string{
		"Content-Type":           "application/json",
		"Operation-Id":           operationID,
		"x-ms-client-request-id": uuid.New().String(),
	}, body)
	if err != nil {
		return nil, fmt.Errorf("acs: send request: %w", err)
	}
	if re := classifyResponse(resp.StatusCode, resp.Body); re != nil {
		return nil, re
	}

	var status OperationStatus
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &status); err != nil {
			return nil, fmt.Errorf("acs: decode send response: %w", err)
		}
	}
	if status.ID == "" {
		status.ID = operationID
	}

	location := resp.Headers["Operation-Location"]
	if location == "" {
		location = c.url(fmt.Sprintf(operationsPathFmt, url.PathEscape(status.ID)))
	}
	retryAfter := parseRetryAfter(resp.Headers["Retry-After"])

	token, err := c.tokens.seal(status.ID, location, retryAfter)
	if err != nil {
		return nil, err
	}

	return &Poller{
		client:     c,
		id:         status.ID,
		location:   location,
		retryAfter: retryAfter,
		token:      token,
	}, nil
}

// ResumePoller rebuilds a Poller from a token previously returned by
// Poller.ResumeToken. No request is sent; the token is only verified.
// Tokens that were altered, truncated, expired or issued for another
// resource fail with ErrInvalidResumeToken.
func (c *Client) ResumePoller(token string) (*Poller, error) {
	claims, err := c.tokens.open(token, c.endpoint)
	if err != nil {
		return nil, err
	}
	return &Poller{
		client:     c,
		id:         claims.ID,
		location:   claims.OperationLocation,
		retryAfter: time.Duration(claims.RetryAfter) * time.Second,
		token:      token,
	}, nil
}

func (c *Client) url(path string) string {
	u := *c.endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = url.Values{"api-version": {c.apiVersion}}.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) (*HTTPResponse, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	c.signer.sign(method, u, headers, body)
	return c.http.Do(ctx, &HTTPRequest{
		Method:  method,
		URL:     rawURL,
		Headers: headers,
		Body:    body,
	})
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Poller tracks one send operation.
type Poller struct {
	client     *Client
	id         string
	location   string
	retryAfter time.Duration
	token      string
}

// ID returns the operation ID assigned by ACS.
func (p *Poller) ID() string { return p.id }

// ResumeToken returns the serialized operation state. Passing it unchanged
// to Client.ResumePoller yields an equivalent Poller, in this or any other
// process configured for the same resource.
func (p *Poller) ResumeToken() string { return p.token }

// RetryAfter returns the poll interval suggested by ACS, or zero.
func (p *Poller) RetryAfter() time.Duration { return p.retryAfter }

// Poll fetches the current operation status from ACS.
func (p *Poller) Poll(ctx context.Context) (*OperationStatus, error) {
	resp, err := p.client.do(ctx, http.MethodGet, p.location, map[string]string{}, nil)
	if err != nil {
		return nil, fmt.Errorf("acs: poll request: %w", err)
	}
	if re := classifyResponse(resp.StatusCode, resp.Body); re != nil {
		if re.StatusCode == http.StatusNotFound {
			return nil, errors.Join(ErrOperationNotFound, re)
		}
		return nil, re
	}

	var status OperationStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("acs: decode operation status: %w", err)
	}
	if status.ID == "" {
		status.ID = p.id
	}
	return &status, nil
}
