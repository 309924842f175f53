package config

import "testing"

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsMissingAddr(t *testing.T) {
	cfg := Defaults()
	cfg.Addr = ""
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error for an empty Addr")
	}
}

func TestValidateRejectsZeroShutdownTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.ShutdownTimeout = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error for a zero ShutdownTimeout")
	}
}

func TestValidateRejectsBadLoggingLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error for an unrecognized logging level")
	}
}

func TestValidateRequiresMetricsAddrWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ""
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error when metrics is enabled with no addr")
	}
}

func TestLoadWithNoConfigPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != Defaults().Addr {
		t.Fatalf("Addr = %q, want default %q", cfg.Addr, Defaults().Addr)
	}
}
