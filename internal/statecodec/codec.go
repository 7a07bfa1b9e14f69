// Package statecodec produces and verifies the tamper-evident, time-bound
// tokens used as the OAuth state parameter and the matching browser cookie.
package statecodec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"golang.org/x/crypto/hkdf"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
)

const minSecretLen = 16

// Codec encrypts a short-lived random nonce into a compact JWE token. The
// token is unguessable, unforgeable, and carries its own expiry; any
// verification failure is a hard rejection.
type Codec struct {
	key       []byte
	encrypter gojose.Encrypter
}

type stateClaims struct {
	Nonce string `json:"nonce"`
}

// New derives the content-encryption key from the configured cookie secret
// and prepares the encrypter.
func New(secret []byte) (*Codec, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("statecodec: secret must be at least %d bytes", minSecretLen)
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, secret, nil, []byte("linked-role-state"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("statecodec: derive key: %w", err)
	}

	encrypter, err := gojose.NewEncrypter(
		gojose.A256GCM,
		gojose.Recipient{Algorithm: gojose.DIRECT, Key: key},
		(&gojose.EncrypterOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("statecodec: new encrypter: %w", err)
	}

	return &Codec{key: key, encrypter: encrypter}, nil
}

// Sign issues a fresh state token valid for ttl.
func (c *Codec) Sign(ttl time.Duration) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("statecodec: generate nonce: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := stateClaims{Nonce: base64.RawURLEncoding.EncodeToString(nonce)}

	token, err := gojwt.Encrypted(c.encrypter).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("statecodec: serialize state: %w", err)
	}
	return token, nil
}

// Verify decrypts the token and checks its expiry against now. The nonce is
// returned only when both the authentication tag and the expiry check pass;
// every failure mode wraps domain.ErrStateInvalid.
func (c *Codec) Verify(token string, now time.Time) (string, error) {
	parsed, err := gojwt.ParseEncrypted(
		token,
		[]gojose.KeyAlgorithm{gojose.DIRECT},
		[]gojose.ContentEncryption{gojose.A256GCM},
	)
	if err != nil {
		return "", fmt.Errorf("%w: parse: %v", domain.ErrStateInvalid, err)
	}

	var std gojwt.Claims
	var custom stateClaims
	if err := parsed.Claims(c.key, &std, &custom); err != nil {
		return "", fmt.Errorf("%w: decrypt: %v", domain.ErrStateInvalid, err)
	}

	if err := std.ValidateWithLeeway(gojwt.Expected{Time: now}, 0); err != nil {
		return "", fmt.Errorf("%w: expired: %v", domain.ErrStateInvalid, err)
	}
	if custom.Nonce == "" {
		return "", fmt.Errorf("%w: empty nonce", domain.ErrStateInvalid)
	}
	return custom.Nonce, nil
}
