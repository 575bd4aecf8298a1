package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func useConfigFile(t *testing.T, contents string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if contents != "" {
		if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("CONFIG_FILE", path)
}

func TestConfig_Defaults(t *testing.T) {
	useConfigFile(t, "")

	if err := Load(); err != nil {
		t.Fatal(err)
	}

	if C.Session.Name != "itsuki.sid" {
		t.Errorf("Expected cookie name itsuki.sid, got %q", C.Session.Name)
	}
	if C.Session.Timeout != time.Hour {
		t.Errorf("Expected default session timeout 1h, got %v", C.Session.Timeout)
	}
	if C.Session.Secure {
		t.Error("Session cookie should not be secure-flagged by default")
	}
	if C.OTP.Issuer != "ItsukiServer" {
		t.Errorf("Expected issuer ItsukiServer, got %q", C.OTP.Issuer)
	}
	if C.Store.Driver != "memory" || C.Session.Backend != "memory" {
		t.Errorf("Expected memory store and sessions, got %q/%q", C.Store.Driver, C.Session.Backend)
	}
	if len(C.Store.SeedUsers) != 1 || C.Store.SeedUsers[0].Email != "email@example.com" {
		t.Errorf("Expected the default seed user, got %+v", C.Store.SeedUsers)
	}
	if C.Server.MaxBodySize != 1024*1024 {
		t.Errorf("Expected 1MB body limit, got %d", C.Server.MaxBodySize)
	}
}

func TestConfig_SessionTimeoutFromEnv(t *testing.T) {
	useConfigFile(t, "")
	t.Setenv("SESSION_TIMEOUT", "15m")

	if err := Load(); err != nil {
		t.Fatal(err)
	}

	if C.Session.Timeout != 15*time.Minute {
		t.Errorf("Expected session timeout 15m, got %v", C.Session.Timeout)
	}
}

func TestConfig_YAMLThenEnv(t *testing.T) {
	useConfigFile(t, `
listen: ":9999"
store:
  driver: sqlite
  seed_users: []
session:
  backend: redis
  redis_url: redis://cache:6379/1
otp:
  issuer: FromYAML
server:
  max_body_size: 64KB
`)
	t.Setenv("OTP_ISSUER", "FromEnv")

	if err := Load(); err != nil {
		t.Fatal(err)
	}

	if C.Listen != ":9999" {
		t.Errorf("Expected listen from YAML, got %q", C.Listen)
	}
	if C.Store.Driver != "sqlite" {
		t.Errorf("Expected sqlite driver, got %q", C.Store.Driver)
	}
	if len(C.Store.SeedUsers) != 0 {
		t.Errorf("Expected YAML to clear seed users, got %+v", C.Store.SeedUsers)
	}
	if C.Session.RedisURL != "redis://cache:6379/1" {
		t.Errorf("Unexpected redis url %q", C.Session.RedisURL)
	}
	if C.OTP.Issuer != "FromEnv" {
		t.Errorf("Expected env to override issuer, got %q", C.OTP.Issuer)
	}
	if C.Server.MaxBodySize != 64*1024 {
		t.Errorf("Expected 64KB body limit, got %d", C.Server.MaxBodySize)
	}
}

func TestConfig_RejectsShortSecret(t *testing.T) {
	useConfigFile(t, "")
	t.Setenv("SESSION_SECRET", "short")

	if err := Load(); err == nil {
		t.Error("Load should fail when the session secret is too short")
	}
}

func TestConfig_RejectsUnknownBackend(t *testing.T) {
	useConfigFile(t, "")
	t.Setenv("SESSION_BACKEND", "memcached")

	if err := Load(); err == nil {
		t.Error("Load should fail for an unknown session backend")
	}
}

func TestConfig_RejectsUnknownPasswordScheme(t *testing.T) {
	useConfigFile(t, "")
	t.Setenv("PASSWORD_SCHEME", "md5")

	if err := Load(); err == nil {
		t.Error("Load should fail for an unknown password scheme")
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"512":   512,
		"1KB":   1024,
		"1mb":   1024 * 1024,
		"1.5KB": 1536,
		"2 GB":  2 * 1024 * 1024 * 1024,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		if err != nil {
			t.Errorf("ParseSize(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}

	for _, in := range []string{"", "lots", "5XB"} {
		if _, err := ParseSize(in); err == nil {
			t.Errorf("ParseSize(%q) should fail", in)
		}
	}
}
