package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Verification failures. All of them collapse to "authentication failed"
// toward the client; the distinction is for logging and for callers that
// must tell token classes apart.
var (
	ErrTokenExpired      = errors.New("auth: token expired")
	ErrTokenMalformed    = errors.New("auth: token malformed")
	ErrTokenBadSignature = errors.New("auth: token signature invalid")
	ErrTokenWrongClass   = errors.New("auth: token has wrong class")
	ErrUnknownSubject    = errors.New("auth: token subject unknown to directory")
)

// Config are the token parameters. RenewalClaim names the boolean claim that
// distinguishes renewal tokens from access tokens.
type Config struct {
	Issuer       string
	AccessTTL    time.Duration
	RenewalTTL   time.Duration
	RenewalClaim string
	Prefix       string
}

// KeySource provides the current signing keypair.
type KeySource interface {
	PrivateKey() (*rsa.PrivateKey, error)
	PublicKey() (*rsa.PublicKey, error)
}

// PrincipalSource resolves a token subject to a principal with fresh
// authorities. Implemented by the directory client.
type PrincipalSource interface {
	LookupPrincipal(ctx context.Context, username string) (*Principal, error)
}

// Token is the verified form of a bearer token: either an *AccessToken or a
// *RenewalToken. The class is part of the type so that confusion between the
// two is a compile error, not a missed flag check.
type Token interface {
	TokenPrincipal() *Principal
	token()
}

// AccessToken is a verified short-lived API credential.
type AccessToken struct {
	Principal *Principal
	ExpiresAt time.Time
}

func (t *AccessToken) TokenPrincipal() *Principal { return t.Principal }
func (t *AccessToken) token()                     {}

// RenewalToken is a verified long-lived token whose only power is obtaining
// a fresh access token.
type RenewalToken struct {
	Principal *Principal
	ExpiresAt time.Time
}

func (t *RenewalToken) TokenPrincipal() *Principal { return t.Principal }
func (t *RenewalToken) token()                     {}

// TokenService issues and verifies both token classes.
type TokenService struct {
	cfg        Config
	keys       KeySource
	principals PrincipalSource
}

// NewTokenService creates a TokenService.
func NewTokenService(cfg Config, keys KeySource, principals PrincipalSource) *TokenService {
	if cfg.RenewalClaim == "" {
		cfg.RenewalClaim = "ren"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "Bearer"
	}
	return &TokenService{cfg: cfg, keys: keys, principals: principals}
}

// Prefix returns the configured bearer prefix, e.g. "Bearer".
func (s *TokenService) Prefix() string { return s.cfg.Prefix }

// IssueAccess signs a new access token for the principal.
func (s *TokenService) IssueAccess(p *Principal) (string, error) {
	return s.issue(p, false, s.cfg.AccessTTL)
}

// IssueRenewal signs a new renewal token for the principal.
func (s *TokenService) IssueRenewal(p *Principal) (string, error) {
	return s.issue(p, true, s.cfg.RenewalTTL)
}

func (s *TokenService) issue(p *Principal, renewal bool, ttl time.Duration) (string, error) {
	key, err := s.keys.PrivateKey()
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":              s.cfg.Issuer,
		"sub":              p.Name,
		"iat":              now.Unix(),
		"exp":              now.Add(ttl).Unix(),
		s.cfg.RenewalClaim: renewal,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and verifies a compact token string without an a priori
// class expectation and returns the class-typed result. The principal is
// reconstructed from the subject claim with a fresh directory lookup, so
// authority changes take effect on the next request, not at token expiry.
func (s *TokenService) Verify(ctx context.Context, raw string) (Token, error) {
	key, err := s.keys.PublicKey()
	if err != nil {
		return nil, err
	}
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, translateJWTError(err)
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenMalformed)
	}
	renewal, _ := claims[s.cfg.RenewalClaim].(bool)

	principal, err := s.principals.LookupPrincipal(ctx, subject)
	if err != nil {
		log.Warn().Str("subject", subject).Err(err).Msg("token subject not resolvable in directory")
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
	}
	log.Debug().
		Str("subject", subject).
		Bool("renewal", renewal).
		Time("expires", exp.Time).
		Msg("verified token")
	if renewal {
		return &RenewalToken{Principal: principal, ExpiresAt: exp.Time}, nil
	}
	return &AccessToken{Principal: principal, ExpiresAt: exp.Time}, nil
}

// VerifyAccess verifies raw and requires the access class.
func (s *TokenService) VerifyAccess(ctx context.Context, raw string) (*AccessToken, error) {
	tok, err := s.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	access, ok := tok.(*AccessToken)
	if !ok {
		return nil, fmt.Errorf("%w: renewal token presented as access credential", ErrTokenWrongClass)
	}
	return access, nil
}

// VerifyRenewal verifies raw and requires the renewal class.
func (s *TokenService) VerifyRenewal(ctx context.Context, raw string) (*RenewalToken, error) {
	tok, err := s.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	renewal, ok := tok.(*RenewalToken)
	if !ok {
		return nil, fmt.Errorf("%w: access token presented for renewal", ErrTokenWrongClass)
	}
	return renewal, nil
}

// HasBearer reports whether the request carries an Authorization header.
// Presence only; nothing is parsed.
func (s *TokenService) HasBearer(r *http.Request) bool {
	return r.Header.Get("Authorization") != ""
}

// BearerFromRequest extracts the compact token from the Authorization
// header. The second return is false when the header is absent or does not
// start with the configured prefix.
func (s *TokenService) BearerFromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	prefix := s.cfg.Prefix + " "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func translateJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
