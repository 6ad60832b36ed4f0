package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	ivSize  = 16
	tagSize = 16
)

// DecryptionError reports a ciphertext that could not be recovered,
// whether from malformed encoding, truncation, or tag mismatch.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vault: decrypt failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("vault: decrypt failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Vault encrypts and decrypts merchant credentials with AES-256-GCM.
// The data key is derived from the configured secret via SHA-256, so the
// same secret always opens ciphertexts written by earlier deployments.
type Vault struct {
	key [32]byte
}

// New derives the data key from secret. An empty secret is a configuration
// error and refuses construction.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault: credentials secret is not configured")
	}
	return &Vault{key: sha256.Sum256([]byte(secret))}, nil
}

// Encrypt seals plaintext and returns a lowercase hex string laid out as
// IV (16 bytes) || auth tag (16 bytes) || ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("vault: generate iv: %w", err)
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, ivSize+tagSize+len(ct))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. All failure modes come back as *DecryptionError
// so callers can distinguish bad ciphertext from infrastructure faults.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return "", &DecryptionError{Reason: "not hex encoded", Err: err}
	}
	if len(raw) < ivSize+tagSize {
		return "", &DecryptionError{Reason: "ciphertext too short"}
	}
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}
	iv := raw[:ivSize]
	tag := raw[ivSize : ivSize+tagSize]
	ct := raw[ivSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}
	return string(plain), nil
}

// IsEncrypted reports whether value looks like output of Encrypt. Legacy
// rows may still hold plaintext keys; those fail the shape check and are
// re-encrypted on the next write.
func IsEncrypted(value string) bool {
	if len(value) < 2*(ivSize+tagSize) || len(value)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}
