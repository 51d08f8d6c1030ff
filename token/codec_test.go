package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func hs256TestConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		TempTTL:       5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authcore-test",
	}
}

func newTestCodec(t *testing.T, cfg Config) *Codec {
	t.Helper()

	codec, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := newTestCodec(t, hs256TestConfig())

	tokenStr, err := codec.IssueAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	claims, err := codec.ParseAccess(tokenStr)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Use != UseAccess {
		t.Errorf("Use = %q, want %q", claims.Use, UseAccess)
	}
	if claims.Issuer != "authcore-test" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestTempTokenRoundTrip(t *testing.T) {
	codec := newTestCodec(t, hs256TestConfig())

	tokenStr, jti, err := codec.IssueTemp("u1")
	if err != nil {
		t.Fatalf("IssueTemp failed: %v", err)
	}
	if jti == "" {
		t.Fatal("jti missing")
	}

	claims, err := codec.ParseTemp(tokenStr)
	if err != nil {
		t.Fatalf("ParseTemp failed: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("UserID = %q", claims.UserID)
	}
	if claims.ID != jti {
		t.Errorf("jti = %q, want %q", claims.ID, jti)
	}
	if claims.Email != "" {
		t.Error("temp tokens must not carry an email")
	}
}

func TestUseSeparation(t *testing.T) {
	codec := newTestCodec(t, hs256TestConfig())

	access, err := codec.IssueAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	temp, _, err := codec.IssueTemp("u1")
	if err != nil {
		t.Fatalf("IssueTemp failed: %v", err)
	}

	if _, err := codec.ParseAccess(temp); !errors.Is(err, ErrWrongUse) {
		t.Errorf("temp token as access: expected ErrWrongUse, got %v", err)
	}
	if _, err := codec.ParseTemp(access); !errors.Is(err, ErrWrongUse) {
		t.Errorf("access token as temp: expected ErrWrongUse, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := hs256TestConfig()
	cfg.AccessTTL = -time.Minute
	cfg.TempTTL = time.Minute

	codec := &Codec{config: cfg}
	tokenStr, err := codec.IssueAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	if _, err := codec.ParseAccess(tokenStr); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestWrongKeyRejected(t *testing.T) {
	issuer := newTestCodec(t, hs256TestConfig())

	other := hs256TestConfig()
	other.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	verifier := newTestCodec(t, other)

	tokenStr, err := issuer.IssueAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	if _, err := verifier.ParseAccess(tokenStr); err == nil {
		t.Fatal("token verified with the wrong key")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	codec := newTestCodec(t, Config{
		AccessTTL:     15 * time.Minute,
		TempTTL:       5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore-test",
	})

	tokenStr, err := codec.IssueAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	claims, err := codec.ParseAccess(tokenStr)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("UserID = %q", claims.UserID)
	}
}

func TestNewCodecValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"zero temp ttl", func(c *Config) { c.TempTTL = 0 }},
		{"negative leeway", func(c *Config) { c.Leeway = -time.Second }},
		{"excessive leeway", func(c *Config) { c.Leeway = 3 * time.Minute }},
		{"unknown method", func(c *Config) { c.SigningMethod = "rs256" }},
		{"hs256 without key", func(c *Config) { c.PrivateKey = nil }},
		{"ed25519 with bad keys", func(c *Config) {
			c.SigningMethod = MethodEd25519
			c.PrivateKey = []byte("short")
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := hs256TestConfig()
			c.mutate(&cfg)
			if _, err := NewCodec(cfg); err == nil {
				t.Error("expected a construction error")
			}
		})
	}
}

func TestGarbageTokens(t *testing.T) {
	codec := newTestCodec(t, hs256TestConfig())

	for _, bad := range []string{"", "x", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := codec.ParseAccess(bad); err == nil {
			t.Errorf("token %q accepted", bad)
		}
	}
}

func TestNewRefreshSecret(t *testing.T) {
	first, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret failed: %v", err)
	}
	second, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret failed: %v", err)
	}
	if first == second {
		t.Fatal("two secrets are identical")
	}

	raw, err := base64.RawURLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("secret is not base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("secret is %d bytes, want 32", len(raw))
	}
}

func TestHashRefreshSecret(t *testing.T) {
	if HashRefreshSecret("abc") != HashRefreshSecret("abc") {
		t.Error("hash is not deterministic")
	}
	if HashRefreshSecret("abc") == HashRefreshSecret("abd") {
		t.Error("different secrets share a hash")
	}
	// SHA-256 hex digest of "abc".
	if got := HashRefreshSecret("abc"); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("HashRefreshSecret(abc) = %s", got)
	}
}

func TestFamilyAndTokenIDs(t *testing.T) {
	if NewFamilyID() == NewFamilyID() {
		t.Error("family ids collide")
	}
	if NewTokenID() == NewTokenID() {
		t.Error("token ids collide")
	}
}
