package mpwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signatureVersion = "v1"

// VerifySignature checks an x-signature header of the form "ts=...,v1=<hex>"
// against the hex HMAC-SHA256 of body. Only the first v1 part is compared;
// other parts are ignored.
func VerifySignature(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	for _, part := range strings.Split(header, ",") {
		version, hash, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(version) != signatureVersion {
			continue
		}
		given, err := hex.DecodeString(strings.TrimSpace(hash))
		if err != nil {
			return false
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		return hmac.Equal(given, mac.Sum(nil))
	}
	return false
}

// Sign produces a header VerifySignature accepts.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
