package tlsboot

import "testing"

func TestLoadGeneratesSelfSignedWithoutFiles(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinVersion != 0x0304 { // tls.VersionTLS13
		t.Fatalf("expected TLS 1.3 minimum, got %x", cfg.MinVersion)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
}

func TestGenerateSelfSignedIsCurrentlyValid(t *testing.T) {
	cert, err := generateSelfSigned()
	if err != nil {
		t.Fatalf("generateSelfSigned: %v", err)
	}
	if err := validateLeaf(cert); err != nil {
		t.Fatalf("freshly generated cert should validate: %v", err)
	}
}
