package token

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failure kinds. Callers branch on these; Verify never panics and
// returns exactly one of them for a bad token.
var (
	// ErrMalformed is returned when the token cannot be decoded at all.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired is returned when the token's exp claim is in the past.
	ErrExpired = errors.New("token expired")
	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Claims is the payload carried by every token this service mints:
// sub (user id), jti, iat, and exp. Refresh tokens use the same shape with a
// longer TTL. The random jti makes every minted token unique even under
// deterministic signature schemes (RS256), so two logins in the same second
// can never yield colliding refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Codec signs and verifies bearer tokens using an RS256 or ES256 key pair.
// It is stateless; the key pair and issuer are process-wide configuration
// loaded once at startup.
type Codec struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
}

// NewCodec returns a Codec signing with privateKey (RSA or ECDSA) and
// verifying with publicKey. issuer is set on minted claims and checked
// during verification.
func NewCodec(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer string) *Codec {
	return &Codec{privateKey: privateKey, publicKey: publicKey, issuer: issuer}
}

// Mint produces a signed token whose subject is userID and whose expiry is
// now + ttl. Returns the token string and its absolute expiry.
func (c *Codec) Mint(userID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	var method jwt.SigningMethod
	switch c.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrInvalidSignature
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString(c.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the token's signature and expiry and returns the subject
// user id and absolute expiry. Failures are reported as ErrInvalidSignature,
// ErrExpired, or ErrMalformed; callers must branch on the result instead of
// treating verification as exceptional.
func (c *Codec) Verify(tokenString string) (string, time.Time, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return c.publicKey, nil
		default:
			return nil, ErrInvalidSignature
		}
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", time.Time{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", time.Time{}, ErrInvalidSignature
		default:
			return "", time.Time{}, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", time.Time{}, ErrMalformed
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return "", time.Time{}, ErrInvalidSignature
	}
	if claims.ExpiresAt == nil {
		return "", time.Time{}, ErrMalformed
	}
	return claims.Subject, claims.ExpiresAt.Time, nil
}
