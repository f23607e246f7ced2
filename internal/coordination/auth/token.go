// Package auth turns the registers' shared secret into short-lived signed
// tokens. The secret itself never crosses the network: both sides derive
// the same HMAC key from it with HKDF and exchange HS256 JWTs.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// DefaultTTL bounds how long a captured token stays usable.
const DefaultTTL = 2 * time.Minute

const (
	issuer   = "lanpos-register"
	hkdfSalt = "lanpos/coordination/v1"
	hkdfInfo = "jwt-hs256"
)

// Claims identify the calling register.
type Claims struct {
	jwt.RegisteredClaims
	RegisterID   string `json:"rid"`
	RegisterName string `json:"rname,omitempty"`
}

// DeriveKey returns the 32-byte signing key for secret.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, &common.ConfigurationError{Reason: "shared secret is empty"}
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(hkdfSalt), []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

type Signer struct {
	key          []byte
	registerID   string
	registerName string
	ttl          time.Duration
	now          func() time.Time
}

func NewSigner(secret, registerID, registerName string) (*Signer, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, registerID: registerID, registerName: registerName, ttl: DefaultTTL, now: time.Now}, nil
}

// Token mints a fresh token. Every request gets its own.
func (s *Signer) Token() (string, error) {
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		RegisterID:   s.registerID,
		RegisterName: s.registerName,
	})
	return t.SignedString(s.key)
}

type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) (*Verifier, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Verifier{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}, nil
}

// Verify returns the caller's claims or an error matching
// common.ErrAuthentication.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", common.ErrAuthentication)
	}
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", common.ErrAuthentication)
		}
		return nil, fmt.Errorf("%w: invalid token", common.ErrAuthentication)
	}
	if claims.RegisterID == "" {
		return nil, fmt.Errorf("%w: token has no register id", common.ErrAuthentication)
	}
	return claims, nil
}
