package social

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
)

// StateClaim is the payload carried through the OAuth state parameter. It
// round-trips through the provider and the user's browser, so it is sealed
// rather than trusted: the codec is the only way in or out.
type StateClaim struct {
	Nonce     string `json:"n"`
	Provider  string `json:"p"`
	Verifier  string `json:"v,omitempty"`
	ReturnTo  string `json:"rt,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// StateCodec seals claims into opaque state tokens and opens them again.
type StateCodec interface {
	Seal(claim *StateClaim) (string, error)
	Open(token string) (*StateClaim, error)
}

// SealedStateCodec produces AES-GCM encrypted, HMAC-SHA256 signed state
// tokens. The signature rides in front of the ciphertext so Open rejects
// forgeries before touching the cipher.
type SealedStateCodec struct {
	cipherKey []byte
	macKey    []byte
	ttl       time.Duration
}

// NewStateCodec builds a codec. ttl bounds how long an issued state stays
// redeemable; zero means ten minutes.
func NewStateCodec(cipherKey, macKey []byte, ttl time.Duration) *SealedStateCodec {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &SealedStateCodec{
		cipherKey: cipherKey,
		macKey:    macKey,
		ttl:       ttl,
	}
}

// Seal stamps missing nonce and timestamps, encrypts the claim and signs the
// result.
func (c *SealedStateCodec) Seal(claim *StateClaim) (string, error) {
	if claim == nil {
		return "", ErrInvalidState
	}

	now := time.Now()
	if claim.Nonce == "" {
		claim.Nonce = randomToken(16)
	}
	if claim.IssuedAt == 0 {
		claim.IssuedAt = now.Unix()
	}
	if claim.ExpiresAt == 0 {
		claim.ExpiresAt = now.Add(c.ttl).Unix()
	}

	payload, err := json.Marshal(claim)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "encoding oauth state")
	}

	sealed, err := c.encrypt(payload)
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(append(c.mac(sealed), sealed...)), nil
}

// Open verifies the signature, decrypts the claim and enforces its expiry.
func (c *SealedStateCodec) Open(token string) (*StateClaim, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "decoding oauth state")
	}
	if len(raw) < sha256.Size {
		return nil, ErrInvalidState
	}

	sig, sealed := raw[:sha256.Size], raw[sha256.Size:]
	if !hmac.Equal(sig, c.mac(sealed)) {
		return nil, ErrInvalidState
	}

	payload, err := c.decrypt(sealed)
	if err != nil {
		return nil, ErrInvalidState
	}

	var claim StateClaim
	if err := json.Unmarshal(payload, &claim); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "decoding oauth state")
	}

	if time.Now().Unix() > claim.ExpiresAt {
		return nil, ErrStateExpired
	}

	return &claim, nil
}

func (c *SealedStateCodec) mac(b []byte) []byte {
	h := hmac.New(sha256.New, c.macKey)
	h.Write(b)
	return h.Sum(nil)
}

func (c *SealedStateCodec) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "generating state nonce")
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *SealedStateCodec) decrypt(sealed []byte) ([]byte, error) {
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrInvalidState
	}
	return gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
}

func (c *SealedStateCodec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.cipherKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "building state cipher")
	}
	return cipher.NewGCM(block)
}

// randomToken returns n random bytes in URL-safe base64.
func randomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
