package authcore

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.Token.AccessTTL = 0 }},
		{"zero temp ttl", func(c *Config) { c.Token.TempTTL = 0 }},
		{"temp ttl exceeds access ttl", func(c *Config) { c.Token.TempTTL = 20 * time.Minute }},
		{"unknown signing method", func(c *Config) { c.Token.SigningMethod = "rs256" }},
		{"hs256 without key", func(c *Config) { c.Token.PrivateKey = nil }},
		{"ed25519 without keys", func(c *Config) { c.Token.SigningMethod = "ed25519"; c.Token.PrivateKey = nil }},
		{"excessive leeway", func(c *Config) { c.Token.Leeway = 5 * time.Minute }},
		{"zero refresh ttl", func(c *Config) { c.Refresh.TTL = 0 }},
		{"refresh ttl below access ttl", func(c *Config) { c.Refresh.TTL = time.Minute }},
		{"argon memory too small", func(c *Config) { c.Password.Memory = 1024 }},
		{"argon time zero", func(c *Config) { c.Password.Time = 0 }},
		{"argon parallelism zero", func(c *Config) { c.Password.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }},
		{"short key", func(c *Config) { c.Password.KeyLength = 8 }},
		{"weak min length", func(c *Config) { c.Password.MinLength = 4 }},
		{"seven totp digits", func(c *Config) { c.TOTP.Digits = 7 }},
		{"tiny totp period", func(c *Config) { c.TOTP.Period = 5 }},
		{"negative skew", func(c *Config) { c.TOTP.Skew = -1 }},
		{"skew above one step", func(c *Config) { c.TOTP.Skew = 2 }},
		{"unknown totp algorithm", func(c *Config) { c.TOTP.Algorithm = "MD5" }},
		{"too few backup codes", func(c *Config) { c.TOTP.BackupCodeCount = 2 }},
		{"too many backup codes", func(c *Config) { c.TOTP.BackupCodeCount = 50 }},
		{"short backup codes", func(c *Config) { c.TOTP.BackupCodeLength = 4 }},
		{"audit enabled without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validTestConfig()
			c.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestConfigEightDigitsAllowed(t *testing.T) {
	cfg := validTestConfig()
	cfg.TOTP.Digits = 8
	if err := cfg.Validate(); err != nil {
		t.Fatalf("eight-digit codes rejected: %v", err)
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	clone.Token.PrivateKey[0] ^= 0xff
	if cfg.Token.PrivateKey[0] == clone.Token.PrivateKey[0] {
		t.Error("clone shares key material with the original")
	}
}

func TestBuilderRequiresStore(t *testing.T) {
	if _, err := New().WithConfig(validTestConfig()).Build(); err == nil {
		t.Fatal("Build without a store should fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := validTestConfig()
	cfg.TOTP.Skew = 3

	if _, err := New().WithConfig(cfg).WithStore(newMockStore()).Build(); err == nil {
		t.Fatal("Build with an invalid config should fail")
	}
}
