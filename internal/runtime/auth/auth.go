// Package auth verifies bearer tokens and carries the caller's account
// through the request context.
package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/drblury/protogate/internal/runtime/identity"
)

var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrUnknownIssuer  = errors.New("unknown token issuer")
	ErrAudience       = errors.New("token audience not allowed")
	ErrMissingSubject = errors.New("missing sub claim")
)

// Supported signing algorithms.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmES256 = "ES256"
)

// IssuerConfig describes how tokens of one issuer are verified.
type IssuerConfig struct {
	// Algorithm is HS256 (Key is the shared secret) or ES256 (Key is a PEM
	// encoded public key).
	Algorithm string
	Key       string
	// Audience lists the audiences the issuer may vouch for. Empty allows any.
	Audience []string
}

// Verifier turns a bearer token into the verified caller account.
type Verifier interface {
	Verify(token string) (identity.AccountID, error)
}

type issuer struct {
	method   jwt.SigningMethod
	key      any
	audience []string
}

// JWTVerifier verifies tokens from a fixed set of issuers.
type JWTVerifier struct {
	issuers map[string]issuer
}

// NewJWTVerifier prepares the keys of every configured issuer.
func NewJWTVerifier(cfg map[string]IssuerConfig) (*JWTVerifier, error) {
	issuers := make(map[string]issuer, len(cfg))
	for name, ic := range cfg {
		switch strings.ToUpper(ic.Algorithm) {
		case AlgorithmHS256:
			if ic.Key == "" {
				return nil, fmt.Errorf("authn %s: key is required", name)
			}
			issuers[name] = issuer{method: jwt.SigningMethodHS256, key: []byte(ic.Key), audience: ic.Audience}
		case AlgorithmES256:
			key, err := jwt.ParseECPublicKeyFromPEM([]byte(ic.Key))
			if err != nil {
				return nil, fmt.Errorf("authn %s: parsing public key: %w", name, err)
			}
			issuers[name] = issuer{method: jwt.SigningMethodES256, key: key, audience: ic.Audience}
		default:
			return nil, fmt.Errorf("authn %s: unsupported algorithm %q", name, ic.Algorithm)
		}
	}
	return &JWTVerifier{issuers: issuers}, nil
}

// Verify validates the token and returns sub.aud as the caller account. When
// the token carries no aud claim the issuer name is used as the audience.
func (v *JWTVerifier) Verify(tokenString string) (identity.AccountID, error) {
	var iss issuer
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		name, err := token.Claims.GetIssuer()
		if err != nil {
			return nil, err
		}
		found, ok := v.issuers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownIssuer, name)
		}
		if token.Method.Alg() != found.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		iss = found
		return found.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.AccountID{}, ErrExpiredToken
		}
		if errors.Is(err, ErrUnknownIssuer) {
			return identity.AccountID{}, err
		}
		return identity.AccountID{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return identity.AccountID{}, ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return identity.AccountID{}, ErrMissingSubject
	}

	audience, err := pickAudience(token.Claims, iss)
	if err != nil {
		return identity.AccountID{}, err
	}
	return identity.AccountID{Label: sub, Audience: audience}, nil
}

func pickAudience(claims jwt.Claims, iss issuer) (string, error) {
	auds, err := claims.GetAudience()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(auds) == 0 {
		name, _ := claims.GetIssuer()
		auds = jwt.ClaimStrings{name}
	}
	for _, aud := range auds {
		if len(iss.audience) == 0 || slices.Contains(iss.audience, aud) {
			return aud, nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrAudience, []string(auds))
}

// SignHS256 issues a token for account, signed with secret. The gateway only
// verifies tokens; this exists for tooling and tests.
func SignHS256(secret []byte, issuerName string, account identity.AccountID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuerName,
		Subject:   account.Label,
		Audience:  jwt.ClaimStrings{account.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// SignES256 is SignHS256 for ECDSA keys.
func SignES256(key *ecdsa.PrivateKey, issuerName string, account identity.AccountID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuerName,
		Subject:   account.Label,
		Audience:  jwt.ClaimStrings{account.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
}

type accountKey struct{}

// WithAccount returns a context carrying the verified caller account.
func WithAccount(ctx context.Context, account identity.AccountID) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFromContext returns the verified caller account, if any.
func AccountFromContext(ctx context.Context) (identity.AccountID, bool) {
	account, ok := ctx.Value(accountKey{}).(identity.AccountID)
	return account, ok
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: invalid authorization header format", ErrMissingToken)
	}
	return strings.TrimSpace(token), nil
}

// Middleware rejects requests without a valid bearer token and stores the
// verified account in the request context.
func Middleware(verifier Verifier, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r.Header.Get("Authorization"))
			if err != nil {
				onError(w, r, err)
				return
			}
			account, err := verifier.Verify(token)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}
