package acs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"
)

const signedHeaders = "x-ms-date;host;x-ms-content-sha256"

// signer applies the HMAC-SHA256 shared-key scheme ACS expects on every request.
type signer struct {
	key []byte
	now func() time.Time
}

// sign adds x-ms-date, x-ms-content-sha256 and Authorization to headers.
func (s *signer) sign(method string, u *url.URL, headers map[string]string, body []byte) {
	date := s.now().UTC().Format(http.TimeFormat)
	contentHash := contentSHA256(body)

	pathAndQuery := u.EscapedPath()
	if u.RawQuery != "" {
		pathAndQuery += "?" + u.RawQuery
	}

	stringToSign := method + "\n" + pathAndQuery + "\n" + date + ";" + u.Host + ";" + contentHash

	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headers["x-ms-date"] = date
	headers["x-ms-content-sha256"] = contentHash
	headers["Authorization"] = "HMAC-SHA256 SignedHeaders=" + signedHeaders + "&Signature=" + signature
}

func contentSHA256(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}
