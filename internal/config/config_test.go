package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"VIDEO_FILE", "VIDEO_FPS", "VIDEO_CRF", "AUDIO_BITRATE",
		"VIDEO_RESOLUTION", "VIDEO_QUALITY", "SERVER_HOST", "SERVER_PORT",
		"MAX_CLIENTS", "GROWING_FILE", "TRANSCODER_PATH", "PUBLIC_DIR",
		"TLS_CERT_FILE", "TLS_KEY_FILE",
	}
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VideoFile != "video.mp4" || cfg.VideoFPS != 30 || cfg.VideoCRF != 23 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Addr() != "127.0.0.1:8000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.HasVideoQuality {
		t.Error("expected no quality override by default")
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("VIDEO_FPS", "24")
	os.Setenv("MAX_CLIENTS", "5")
	os.Setenv("VIDEO_QUALITY", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VideoFPS != 24 {
		t.Errorf("VideoFPS = %d, want 24", cfg.VideoFPS)
	}
	if cfg.MaxClients != 5 {
		t.Errorf("MaxClients = %d, want 5", cfg.MaxClients)
	}
	if !cfg.HasVideoQuality || cfg.VideoQuality != 0.5 {
		t.Errorf("VideoQuality = %v (set=%v), want 0.5", cfg.VideoQuality, cfg.HasVideoQuality)
	}
}

func TestLoadRejectsInvalidQuality(t *testing.T) {
	clearEnv(t)
	os.Setenv("VIDEO_QUALITY", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric VIDEO_QUALITY")
	}
}

func TestLoadRejectsOutOfRangeQuality(t *testing.T) {
	clearEnv(t)
	os.Setenv("VIDEO_QUALITY", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range VIDEO_QUALITY")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVER_PORT", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero SERVER_PORT")
	}
}

func TestLoadRejectsOneSidedTLSConfig(t *testing.T) {
	clearEnv(t)
	os.Setenv("TLS_CERT_FILE", "/tmp/cert.pem")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when only TLS_CERT_FILE is set")
	}
}

func TestQualityPrefersScalarOverExplicit(t *testing.T) {
	clearEnv(t)
	os.Setenv("VIDEO_CRF", "18")
	os.Setenv("VIDEO_QUALITY", "0.0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	q := cfg.Quality()
	if q.EffectiveCRF() != 40 {
		t.Errorf("EffectiveCRF() = %d, want 40 (quality=0 overrides explicit CRF)", q.EffectiveCRF())
	}
}
