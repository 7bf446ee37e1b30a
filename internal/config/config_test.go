package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DATABASE", "spectrumsync")
	t.Setenv("DB_USER", "specsync")
	t.Setenv("SPECTRUM_BASE_URL", "https://spectrum.example.com/ws")
	t.Setenv("SPECTRUM_AUTH_ID", "auth-123")
	t.Setenv("SPECTRUM_COMPANY_CODE", "FTL")
	t.Setenv("AUTHZ_URL", "http://localhost:8080")
	t.Setenv("AUTHZ_CLIENT_ID", "client-abc")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "3000" {
		t.Errorf("Port default = %q", cfg.Port)
	}
	if cfg.SpectrumPageCap != 500 {
		t.Errorf("SpectrumPageCap default = %d", cfg.SpectrumPageCap)
	}
	if cfg.ContactWorkers != 6 {
		t.Errorf("ContactWorkers default = %d", cfg.ContactWorkers)
	}
	if cfg.SyncSchedule != "0 * * * *" {
		t.Errorf("SyncSchedule default = %q", cfg.SyncSchedule)
	}
	if cfg.RawPayloadEnabled {
		t.Error("RawPayloadEnabled should default off")
	}
	if cfg.FallbackBranch != "Unassigned" {
		t.Errorf("FallbackBranch default = %q", cfg.FallbackBranch)
	}
}

func TestLoadListsAndOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SPECTRUM_DIVISIONS", "100, 200 ,300")
	t.Setenv("SPECTRUM_DIVISION_DENYLIST", "999")
	t.Setenv("SPECTRUM_STATUS_CODES", "A,C")
	t.Setenv("SPECTRUM_PAGE_CAP", "250")
	t.Setenv("RAW_PAYLOAD_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.SpectrumDivisions) != 3 || cfg.SpectrumDivisions[1] != "200" {
		t.Errorf("SpectrumDivisions = %v", cfg.SpectrumDivisions)
	}
	if len(cfg.SpectrumDenylist) != 1 || cfg.SpectrumDenylist[0] != "999" {
		t.Errorf("SpectrumDenylist = %v", cfg.SpectrumDenylist)
	}
	if cfg.SpectrumPageCap != 250 {
		t.Errorf("SpectrumPageCap = %d", cfg.SpectrumPageCap)
	}
	if !cfg.RawPayloadEnabled {
		t.Error("RAW_PAYLOAD_ENABLED=true not honored")
	}
}

func TestLoadRequiredFields(t *testing.T) {
	required := []string{
		"DB_DATABASE", "DB_USER",
		"SPECTRUM_BASE_URL", "SPECTRUM_AUTH_ID", "SPECTRUM_COMPANY_CODE",
		"AUTHZ_URL", "AUTHZ_CLIENT_ID",
	}
	for _, missing := range required {
		t.Run(missing, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(missing, "")
			if _, err := Load(); err == nil {
				t.Errorf("Load should fail without %s", missing)
			}
		})
	}
}
