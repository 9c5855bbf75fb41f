// Package envelope implements the encrypted representation of cached values.
//
// An envelope is the string "keyId:iv:authTag:ciphertext" with every part base64
// encoded. Values are sealed with AES-256-GCM under the active key of a Keyring;
// any key still present in the ring can open envelopes it produced, which is what
// makes key rotation possible without invalidating previously cached data.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	KeySize = 32
	ivSize  = 12
	tagSize = 16
	idBytes = 4
)

var (
	// ErrUnknownKey is returned when an envelope names a key id missing from the ring.
	ErrUnknownKey = errors.New("unknown encryption key id")
	// ErrAuthentication is returned when the GCM tag does not verify.
	ErrAuthentication = errors.New("envelope authentication failed")
	// ErrMalformedEnvelope is returned when the envelope string cannot be parsed.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrNoActiveKey is returned by Encrypt on an empty ring.
	ErrNoActiveKey = errors.New("no active encryption key")
	// ErrInvalidKey is returned when key material does not decode to 32 bytes.
	ErrInvalidKey = errors.New("encryption key must decode to 32 bytes")
)

// Key is one AES-256 key and the id stamped on every envelope it produces.
type Key struct {
	ID     string
	Active bool
	aead   cipher.AEAD
}

// Keyring holds every loaded key. It is built once at startup and read-only afterwards,
// so it is safe for concurrent use.
type Keyring struct {
	active *Key
	byID   map[string]*Key
}

// NewKey builds a key from 32 raw bytes. The id is a short blake2b fingerprint of the
// key so that reordering CACHE_ENCRYPTION_KEYS never changes an existing key's id.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return &Key{ID: hex.EncodeToString(sum[:idBytes]), aead: aead}, nil
}

// ParseKeyMaterial decodes one configured key entry. Accepted forms, tried in order:
// 64 hex characters, standard or URL base64 of 32 bytes, or a raw 32 byte string.
func ParseKeyMaterial(entry string) ([]byte, error) {
	entry = strings.TrimSpace(entry)
	if len(entry) == 2*KeySize {
		if b, err := hex.DecodeString(entry); err == nil {
			return b, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(entry); err == nil && len(b) == KeySize {
			return b, nil
		}
	}
	if len(entry) == KeySize {
		return []byte(entry), nil
	}
	return nil, ErrInvalidKey
}

// NewKeyring builds a ring from configured key entries; the first entry is active.
// An empty list yields an empty ring, which disables encryption.
func NewKeyring(entries []string) (*Keyring, error) {
	ring := &Keyring{byID: make(map[string]*Key, len(entries))}
	for i, entry := range entries {
		raw, err := ParseKeyMaterial(entry)
		if err != nil {
			return nil, fmt.Errorf("encryption key #%d: %w", i+1, err)
		}
		k, err := NewKey(raw)
		if err != nil {
			return nil, fmt.Errorf("encryption key #%d: %w", i+1, err)
		}
		if _, dup := ring.byID[k.ID]; dup {
			continue
		}
		ring.byID[k.ID] = k
		if ring.active == nil {
			k.Active = true
			ring.active = k
		}
	}
	return ring, nil
}

// Enabled reports whether the ring has an active key.
func (r *Keyring) Enabled() bool {
	return r != nil && r.active != nil
}

// ActiveKeyID returns the id of the key used for new envelopes.
func (r *Keyring) ActiveKeyID() string {
	if !r.Enabled() {
		return ""
	}
	return r.active.ID
}

// KeyIDs lists every loaded key id.
func (r *Keyring) KeyIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

// Encrypt seals plaintext under the active key.
func (r *Keyring) Encrypt(plaintext []byte) (string, error) {
	if !r.Enabled() {
		return "", ErrNoActiveKey
	}
	return Encrypt(r.active, plaintext)
}

// Decrypt opens an envelope with whichever loaded key produced it.
func (r *Keyring) Decrypt(envelope string) ([]byte, error) {
	if r == nil {
		return nil, ErrUnknownKey
	}
	return Decrypt(r.byID, envelope)
}

// Encrypt seals plaintext with k using a fresh random IV.
func Encrypt(k *Key, plaintext []byte) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}
	sealed := k.aead.Seal(nil, iv, plaintext, []byte(k.ID))
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	enc := base64.StdEncoding
	return strings.Join([]string{
		enc.EncodeToString([]byte(k.ID)),
		enc.EncodeToString(iv),
		enc.EncodeToString(tag),
		enc.EncodeToString(ct),
	}, ":"), nil
}

// Decrypt opens envelope using the key it names. Nothing is returned unless the
// authentication tag verifies.
func Decrypt(keys map[string]*Key, envelope string) ([]byte, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 4 {
		return nil, ErrMalformedEnvelope
	}
	enc := base64.StdEncoding
	decoded := make([][]byte, len(parts))
	for i, p := range parts {
		b, err := enc.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("%w: part %d: %v", ErrMalformedEnvelope, i, err)
		}
		decoded[i] = b
	}
	keyID, iv, tag, ct := string(decoded[0]), decoded[1], decoded[2], decoded[3]
	if len(iv) != ivSize || len(tag) != tagSize {
		return nil, ErrMalformedEnvelope
	}
	k, ok := keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, keyID)
	}
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := k.aead.Open(nil, iv, sealed, []byte(k.ID))
	if err != nil {
		return nil, ErrAuthentication
	}
	return plain, nil
}
