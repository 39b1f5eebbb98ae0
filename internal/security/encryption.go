package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	// KeyLength is the master key length in bytes (AES-256).
	KeyLength = 32
	// authTagLength is the GCM authentication tag length in bytes.
	authTagLength = 16
)

var (
	// ErrInvalidKey indicates the master key is missing or malformed.
	ErrInvalidKey = errors.New("encryption master key must be a 64-character hex string (32 bytes)")

	// ErrEmptyPlaintext indicates an attempt to encrypt an empty string.
	ErrEmptyPlaintext = errors.New("cannot encrypt empty plaintext")

	// ErrDecryption indicates the stored secret could not be decrypted.
	// This covers missing fields, malformed encodings, wrong-length IVs or
	// tags, and failed authentication (tampering or a changed master key).
	// Callers must treat it as "credential unusable", not as a fatal error.
	ErrDecryption = errors.New("decryption failed")
)

// EncryptedSecret holds one encrypted value. Ciphertext, IV, and AuthTag are
// each independently base64-encoded so they can be persisted as separate
// columns. All three are required to decrypt.
type EncryptedSecret struct {
	Ciphertext string
	IV         string
	AuthTag    string
}

// Encryption provides AES-256-GCM authenticated encryption for small secrets
// (provider API keys, endpoints) plus token hashing and constant-time
// comparison for session tokens.
type Encryption struct {
	key []byte
}

// NewEncryption creates an encryption service from a hex-encoded master key.
// The key must decode to exactly 32 bytes.
func NewEncryption(hexKey string) (*Encryption, error) {
	if len(hexKey) != KeyLength*2 {
		return nil, ErrInvalidKey
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Encryption{key: key}, nil
}

// GenerateMasterKey generates a random 32-byte key as a hex string, suitable
// for use as the master encryption key.
func GenerateMasterKey() (string, error) {
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Encrypt encrypts plaintext with AES-256-GCM using a fresh random nonce.
// Nonce reuse would break the authenticated-encryption guarantee, so a new
// one is generated on every call and no two results are ever identical.
func (e *Encryption) Encrypt(plaintext string) (EncryptedSecret, error) {
	if plaintext == "" {
		return EncryptedSecret{}, ErrEmptyPlaintext
	}

	gcm, err := e.newGCM()
	if err != nil {
		return EncryptedSecret{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedSecret{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the auth tag to the ciphertext; split it off so the two
	// can be stored independently.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-authTagLength]
	authTag := sealed[len(sealed)-authTagLength:]

	return EncryptedSecret{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		AuthTag:    base64.StdEncoding.EncodeToString(authTag),
	}, nil
}

// Decrypt decrypts an EncryptedSecret. Any missing field, malformed encoding,
// wrong-length IV or tag, or authentication failure returns an error wrapping
// ErrDecryption.
func (e *Encryption) Decrypt(secret EncryptedSecret) (string, error) {
	if secret.Ciphertext == "" || secret.IV == "" || secret.AuthTag == "" {
		return "", fmt.Errorf("%w: missing required fields", ErrDecryption)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(secret.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding", ErrDecryption)
	}
	nonce, err := base64.StdEncoding.DecodeString(secret.IV)
	if err != nil {
		return "", fmt.Errorf("%w: invalid IV encoding", ErrDecryption)
	}
	authTag, err := base64.StdEncoding.DecodeString(secret.AuthTag)
	if err != nil {
		return "", fmt.Errorf("%w: invalid auth tag encoding", ErrDecryption)
	}

	gcm, err := e.newGCM()
	if err != nil {
		return "", err
	}

	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: invalid IV length", ErrDecryption)
	}
	if len(authTag) != authTagLength {
		return "", fmt.Errorf("%w: invalid auth tag length", ErrDecryption)
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, authTag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: data may have been tampered with or the master key changed", ErrDecryption)
	}

	return string(plaintext), nil
}

// Validate runs an encrypt/decrypt round-trip to confirm the service is
// usable. Intended to be called once at startup.
func (e *Encryption) Validate() error {
	const probe = "encryption-self-test"

	secret, err := e.Encrypt(probe)
	if err != nil {
		return fmt.Errorf("encryption self-test failed: %w", err)
	}

	plaintext, err := e.Decrypt(secret)
	if err != nil {
		return fmt.Errorf("encryption self-test failed: %w", err)
	}
	if plaintext != probe {
		return errors.New("encryption self-test failed: round-trip mismatch")
	}

	return nil
}

func (e *Encryption) newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token. Used to store
// session identifiers without retaining the raw secret.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateSecureToken returns n cryptographically random bytes as a hex string.
func GenerateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SecureCompare reports whether a and b are equal in constant time. A length
// mismatch returns false rather than an error.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
