package internal

import (
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Auth.AuthEnabled() {
		t.Error("default config should not require auth")
	}
	if cfg.Remote.Enabled {
		t.Error("default config should run offline")
	}
}

func TestHTTPConfig_PortBounds(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := HTTPConfig{Port: port}
		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d should fail validation", port)
		}
	}
	cfg := HTTPConfig{Port: 8080}
	if err := cfg.Validate(); err != nil {
		t.Errorf("port 8080 should pass: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Errorf("address = %q", cfg.Address())
	}
}

func TestCacheConfig_PathRequired(t *testing.T) {
	cfg := CacheConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty cache path should fail validation")
	}
}

func TestSQLiteConfig_PathRequired(t *testing.T) {
	cfg := SQLiteConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty sqlite path should fail validation")
	}
}

func TestRemoteConfig_DisabledSkipsValidation(t *testing.T) {
	cfg := RemoteConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled remote should pass without base_url: %v", err)
	}
}

func TestRemoteConfig_EnabledRequiresBaseURL(t *testing.T) {
	cfg := RemoteConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Error("enabled remote without base_url should fail")
	}
	cfg.BaseURL = "https://backend.example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("enabled remote with base_url should pass: %v", err)
	}
}

func TestAutosaveConfig_RejectsNegativeDelays(t *testing.T) {
	cfg := AutosaveConfig{LocalDelay: -1}
	if err := cfg.Validate(); err == nil {
		t.Error("negative local_delay should fail")
	}
	cfg = AutosaveConfig{RemoteDelay: -1}
	if err := cfg.Validate(); err == nil {
		t.Error("negative remote_delay should fail")
	}
	// Zero means "use the coordinator defaults" and is allowed.
	cfg = AutosaveConfig{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero delays should pass: %v", err)
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_SectionValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}

	cfg = NewDefaultConfig()
	cfg.Remote.Enabled = true
	cfg.Remote.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch remote error")
	}
}
