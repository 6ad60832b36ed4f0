package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignatureFor computes the Midtrans notification signature:
// SHA-512 over order_id + status_code + gross_amount + serverKey, hex encoded.
func SignatureFor(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a notification's signature_key in constant time.
// grossAmount must be the raw string from the payload; re-formatting the
// number changes the digest.
func VerifySignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	expected := SignatureFor(orderID, statusCode, grossAmount, serverKey)
	got := strings.ToLower(strings.TrimSpace(signature))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
