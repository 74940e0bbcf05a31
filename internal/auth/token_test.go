package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

var (
	keyOnce sync.Once
	rsaKey  *rsa.PrivateKey
)

type staticKeys struct{}

func (staticKeys) PrivateKey() (*rsa.PrivateKey, error) {
	keyOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return rsaKey, nil
}

func (k staticKeys) PublicKey() (*rsa.PublicKey, error) {
	priv, err := k.PrivateKey()
	if err != nil {
		return nil, err
	}
	return &priv.PublicKey, nil
}

type staticPrincipals map[string][]string

func (s staticPrincipals) LookupPrincipal(ctx context.Context, username string) (*Principal, error) {
	authorities, ok := s[username]
	if !ok {
		return nil, errors.New("no such user")
	}
	return &Principal{Name: username, Authorities: authorities}, nil
}

func newService(t *testing.T, cfg Config) *TokenService {
	t.Helper()
	if cfg.Issuer == "" {
		cfg.Issuer = "Barrel"
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 10 * time.Minute
	}
	if cfg.RenewalTTL == 0 {
		cfg.RenewalTTL = time.Hour
	}
	return NewTokenService(cfg, staticKeys{}, staticPrincipals{
		"oli": {"MITGLIEDVALIDIERER"},
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newService(t, Config{})
	raw, err := svc.IssueAccess(&Principal{Name: "oli"})
	if err != nil {
		t.Fatal(err)
	}

	tok, err := svc.VerifyAccess(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tok.Principal.Name != "oli" {
		t.Errorf("principal = %q", tok.Principal.Name)
	}
	if !tok.Principal.HasAuthority("mitgliedvalidierer") {
		t.Error("authorities must come from the directory, case-insensitively")
	}
	if !tok.ExpiresAt.After(time.Now()) {
		t.Error("expiry must be in the future")
	}
}

func TestRenewalTokenRoundTrip(t *testing.T) {
	svc := newService(t, Config{})
	raw, err := svc.IssueRenewal(&Principal{Name: "oli"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.VerifyRenewal(context.Background(), raw); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestWrongClassRejected(t *testing.T) {
	svc := newService(t, Config{})
	access, err := svc.IssueAccess(&Principal{Name: "oli"})
	if err != nil {
		t.Fatal(err)
	}
	renewal, err := svc.IssueRenewal(&Principal{Name: "oli"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.VerifyRenewal(context.Background(), access); !errors.Is(err, ErrTokenWrongClass) {
		t.Errorf("access as renewal: expected ErrTokenWrongClass, got %v", err)
	}
	if _, err := svc.VerifyAccess(context.Background(), renewal); !errors.Is(err, ErrTokenWrongClass) {
		t.Errorf("renewal as access: expected ErrTokenWrongClass, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := newService(t, Config{AccessTTL: -time.Minute})
	raw, err := svc.IssueAccess(&Principal{Name: "oli"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(context.Background(), raw); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	svc := newService(t, Config{})
	raw, err := svc.IssueAccess(&Principal{Name: "oli"})
	if err != nil {
		t.Fatal(err)
	}
	// Flip a character well inside the signature segment. The final
	// character only carries base64 padding bits and may decode identically.
	pos := len(raw) - 10
	flip := byte('A')
	if raw[pos] == 'A' {
		flip = 'B'
	}
	tampered := raw[:pos] + string(flip) + raw[pos+1:]

	if _, err := svc.Verify(context.Background(), tampered); !errors.Is(err, ErrTokenBadSignature) {
		t.Errorf("expected ErrTokenBadSignature, got %v", err)
	}
}

func TestGarbageRejectedAsMalformed(t *testing.T) {
	svc := newService(t, Config{})
	for _, raw := range []string{"", "not.a.token", "a.b", strings.Repeat("x", 300)} {
		if _, err := svc.Verify(context.Background(), raw); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Verify(%q): expected ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestWrongIssuerRejected(t *testing.T) {
	issuing := newService(t, Config{Issuer: "SomeoneElse"})
	verifying := newService(t, Config{Issuer: "Barrel"})
	raw, err := issuing.IssueAccess(&Principal{Name: "oli"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifying.Verify(context.Background(), raw); err == nil {
		t.Error("foreign issuer must be rejected")
	}
}

func TestUnknownSubject(t *testing.T) {
	svc := newService(t, Config{})
	raw, err := svc.IssueAccess(&Principal{Name: "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(context.Background(), raw); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("expected ErrUnknownSubject, got %v", err)
	}
}

func TestConfigurableRenewalClaim(t *testing.T) {
	// Two services with different claim names must not accept each
	// other's renewal markers.
	a := newService(t, Config{RenewalClaim: "ren"})
	b := newService(t, Config{RenewalClaim: "refresh"})

	raw, err := a.IssueRenewal(&Principal{Name: "oli"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.VerifyRenewal(context.Background(), raw); err != nil {
		t.Fatalf("own claim name: %v", err)
	}
	// b reads its own claim, finds nothing, sees an access token
	if _, err := b.VerifyRenewal(context.Background(), raw); !errors.Is(err, ErrTokenWrongClass) {
		t.Errorf("expected ErrTokenWrongClass under foreign claim name, got %v", err)
	}
}

func TestBearerFromRequest(t *testing.T) {
	svc := newService(t, Config{})

	r, _ := http.NewRequest("GET", "/", nil)
	if svc.HasBearer(r) {
		t.Error("no header, no bearer")
	}
	if _, ok := svc.BearerFromRequest(r); ok {
		t.Error("no header must not parse")
	}

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	if !svc.HasBearer(r) {
		t.Error("expected bearer present")
	}
	raw, ok := svc.BearerFromRequest(r)
	if !ok || raw != "abc.def.ghi" {
		t.Errorf("BearerFromRequest = %q, %v", raw, ok)
	}

	r.Header.Set("Authorization", "bearer abc.def.ghi")
	if raw, ok := svc.BearerFromRequest(r); !ok || raw != "abc.def.ghi" {
		t.Errorf("prefix match must be case-insensitive, got %q, %v", raw, ok)
	}

	r.Header.Set("Authorization", "Basic b2xpOmdlaGVpbQ==")
	if _, ok := svc.BearerFromRequest(r); ok {
		t.Error("Basic header must not parse as bearer")
	}
}

func TestDefaultsApplied(t *testing.T) {
	svc := NewTokenService(Config{Issuer: "Barrel", AccessTTL: time.Minute, RenewalTTL: time.Hour},
		staticKeys{}, staticPrincipals{"oli": nil})
	if svc.Prefix() != "Bearer" {
		t.Errorf("default prefix = %q", svc.Prefix())
	}
}
