package acs

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	tokenIssuer = "acs-email"
	tokenInfo   = "acs-email resume token v1"
	tokenKeyLen = 32
)

// resumeClaims is the serialized long-running-operation state: everything
// needed to poll the operation again without the original request.
type resumeClaims struct {
	OperationLocation string `json:"loc"`
	RetryAfter        int    `json:"ra,omitempty"`
	jwt.RegisteredClaims
}

// tokenCodec seals and opens resume tokens for a single ACS resource.
type tokenCodec struct {
	key      []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// deriveTokenKey stretches the resource access key into a dedicated signing
// key so the raw credential never signs anything handed to callers.
func deriveTokenKey(accessKey []byte) ([]byte, error) {
	key := make([]byte, tokenKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, accessKey, nil, []byte(tokenInfo)), key); err != nil {
		return nil, fmt.Errorf("acs: derive token key: %w", err)
	}
	return key, nil
}

func (c *tokenCodec) seal(operationID, location string, retryAfter time.Duration) (string, error) {
	now := c.now()
	claims := resumeClaims{
		OperationLocation: location,
		RetryAfter:        int(retryAfter / time.Second),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       operationID,
			Issuer:   tokenIssuer,
			Audience: jwt.ClaimStrings{c.audience},
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if c.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("acs: sign resume token: %w", err)
	}
	return token, nil
}

func (c *tokenCodec) open(token string, endpoint *url.URL) (*resumeClaims, error) {
	var claims resumeClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(c.audience),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResumeToken, err)
	}

	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing operation id", ErrInvalidResumeToken)
	}

	loc, err := url.Parse(claims.OperationLocation)
	if err != nil || loc.Scheme != endpoint.Scheme || loc.Host != endpoint.Host {
		return nil, fmt.Errorf("%w: operation location does not belong to %s", ErrInvalidResumeToken, endpoint.Host)
	}

	return &claims, nil
}
