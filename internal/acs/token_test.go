package acs

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T, ttl time.Duration, now func() time.Time) (*tokenCodec, *url.URL) {
	t.Helper()
	key, err := deriveTokenKey([]byte("access-key"))
	if err != nil {
		t.Fatalf("deriveTokenKey: %v", err)
	}
	endpoint, _ := url.Parse("https://contoso.communication.azure.com")
	return &tokenCodec{key: key, audience: endpoint.Host, ttl: ttl, now: now}, endpoint
}

const testLocation = "https://contoso.communication.azure.com/emails/operations/op-1?api-version=2023-03-31"

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec, endpoint := newTestCodec(t, 0, time.Now)

	token, err := codec.seal("op-1", testLocation, 5*time.Second)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	claims, err := codec.open(token, endpoint)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if claims.ID != "op-1" {
		t.Errorf("expected id op-1, got %s", claims.ID)
	}
	if claims.OperationLocation != testLocation {
		t.Errorf("expected location %s, got %s", testLocation, claims.OperationLocation)
	}
	if claims.RetryAfter != 5 {
		t.Errorf("expected retry after 5, got %d", claims.RetryAfter)
	}
	if claims.ExpiresAt != nil {
		t.Error("expected no expiry without ttl")
	}
}

func TestTokenCodec_RejectsAlteredTokens(t *testing.T) {
	codec, endpoint := newTestCodec(t, 0, time.Now)
	token, err := codec.seal("op-1", testLocation, 0)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	flipped := []byte(token)
	mid := len(flipped) / 2
	if flipped[mid] == 'A' {
		flipped[mid] = 'B'
	} else {
		flipped[mid] = 'A'
	}

	tests := map[string]string{
		"truncated":     token[:len(token)-4],
		"flipped byte":  string(flipped),
		"garbage":       "garbage",
		"empty":         "",
		"extra segment": token + ".x",
	}

	for name, candidate := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := codec.open(candidate, endpoint); !errors.Is(err, ErrInvalidResumeToken) {
				t.Fatalf("expected ErrInvalidResumeToken, got %v", err)
			}
		})
	}
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// Every issued token has exactly one accepted spelling, including the
// unused low bits of each segment's final character.
func TestTokenCodec_RejectsEverySegmentEndingChange(t *testing.T) {
	codec, endpoint := newTestCodec(t, 0, time.Now)
	token, err := codec.seal("op-1", testLocation, 5*time.Second)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}

	for i, name := range []string{"header", "claims", "signature"} {
		seg := segments[i]
		last := seg[len(seg)-1]
		for _, c := range []byte(base64URLAlphabet) {
			if c == last {
				continue
			}
			mutated := make([]string, 3)
			copy(mutated, segments)
			mutated[i] = seg[:len(seg)-1] + string(c)
			candidate := strings.Join(mutated, ".")

			if _, err := codec.open(candidate, endpoint); !errors.Is(err, ErrInvalidResumeToken) {
				t.Errorf("%s ending %q -> %q: expected ErrInvalidResumeToken, got %v", name, last, c, err)
			}
		}
	}
}

func TestTokenCodec_RejectsForeignResource(t *testing.T) {
	codec, endpoint := newTestCodec(t, 0, time.Now)

	otherKey, _ := deriveTokenKey([]byte("someone-else"))
	foreign := &tokenCodec{key: otherKey, audience: endpoint.Host, now: time.Now}
	token, err := foreign.seal("op-1", testLocation, 0)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := codec.open(token, endpoint); !errors.Is(err, ErrInvalidResumeToken) {
		t.Fatalf("expected signature mismatch to be rejected, got %v", err)
	}

	otherAudience := &tokenCodec{key: codec.key, audience: "fabrikam.communication.azure.com", now: time.Now}
	token, err = otherAudience.seal("op-1", testLocation, 0)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := codec.open(token, endpoint); !errors.Is(err, ErrInvalidResumeToken) {
		t.Fatalf("expected audience mismatch to be rejected, got %v", err)
	}
}

func TestTokenCodec_RejectsLocationOnOtherHost(t *testing.T) {
	codec, endpoint := newTestCodec(t, 0, time.Now)
	token, err := codec.seal("op-1", "https://attacker.example.com/emails/operations/op-1", 0)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	_, err = codec.open(token, endpoint)
	if !errors.Is(err, ErrInvalidResumeToken) {
		t.Fatalf("expected ErrInvalidResumeToken, got %v", err)
	}
	if !strings.Contains(err.Error(), "operation location") {
		t.Errorf("expected location error, got %v", err)
	}
}

func TestTokenCodec_Expiry(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	codec, endpoint := newTestCodec(t, time.Hour, func() time.Time { return now })

	token, err := codec.seal("op-1", testLocation, 0)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	now = issued.Add(30 * time.Minute)
	if _, err := codec.open(token, endpoint); err != nil {
		t.Fatalf("expected token valid within ttl, got %v", err)
	}

	now = issued.Add(2 * time.Hour)
	if _, err := codec.open(token, endpoint); !errors.Is(err, ErrInvalidResumeToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestDeriveTokenKey_Deterministic(t *testing.T) {
	a, _ := deriveTokenKey([]byte("k"))
	b, _ := deriveTokenKey([]byte("k"))
	c, _ := deriveTokenKey([]byte("other"))

	if string(a) != string(b) {
		t.Error("expected same input to derive the same key")
	}
	if string(a) == string(c) {
		t.Error("expected different inputs to derive different keys")
	}
	if len(a) != tokenKeyLen || string(a) == "k" {
		t.Errorf("expected %d byte derived key distinct from input", tokenKeyLen)
	}
}
