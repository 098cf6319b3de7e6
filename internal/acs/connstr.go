package acs

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidConnectionString is returned when a connection string cannot be parsed.
var ErrInvalidConnectionString = errors.New("acs: invalid connection string")

// ConnectionString holds the parts of an ACS resource connection string
// ("endpoint=https://<resource>.communication.azure.com/;accesskey=<base64>").
type ConnectionString struct {
	Endpoint  *url.URL
	AccessKey []byte
}

// ParseConnectionString splits and validates an ACS connection string.
// Keys are matched case-insensitively.
func ParseConnectionString(s string) (*ConnectionString, error) {
	var endpoint, key string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: malformed segment %q", ErrInvalidConnectionString, k)
		}
		switch strings.ToLower(k) {
		case "endpoint":
			endpoint = v
		case "accesskey":
			key = v
		}
	}

	if endpoint == "" {
		return nil, fmt.Errorf("%w: missing endpoint", ErrInvalidConnectionString)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing accesskey", ErrInvalidConnectionString)
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, fmt.Errorf("%w: endpoint %q is not an absolute http(s) URL", ErrInvalidConnectionString, endpoint)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""

	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: accesskey is not base64: %v", ErrInvalidConnectionString, err)
	}

	return &ConnectionString{Endpoint: u, AccessKey: decoded}, nil
}
