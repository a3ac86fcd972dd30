package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nlog_level: debug\nemit_timeout: 5s\nacquire_timeout: 250ms\nmax_body_bytes: 4096\ncors_enabled: true\ncors_allowed_origins:\n  - http://a\n  - http://b\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.LogLevel != "debug" || cfg.EmitTimeout != "5s" || cfg.AcquireTimeout != "250ms" || cfg.MaxBodyBytes != 4096 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.CORSEnabled || len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b" {
		t.Fatalf("unexpected cors cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","emit_timeout":"1m","ping_interval":"20s","cors_allowed_methods":["GET"]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.EmitTimeout != "1m" || cfg.PingInterval != "20s" || len(cfg.CORSAllowedMethods) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nlog_level=\"warn\"\nemit_timeout=\"10s\"\nmax_body_bytes=2048\ncors_allowed_headers=[\"X-A\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.LogLevel != "warn" || cfg.EmitTimeout != "10s" || cfg.MaxBodyBytes != 2048 || cfg.CORSAllowedHeaders[0] != "X-A" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"30s", 30 * time.Second, false},
		{" 1m30s ", 90 * time.Second, false},
		{"soon", 0, true},
		{"30", 0, true},
	}
	for _, c := range cases {
		got, err := Duration(c.in)
		if (err != nil) != c.wantErr || got != c.want {
			t.Fatalf("Duration(%q) = %v, %v; want %v (err=%v)", c.in, got, err, c.want, c.wantErr)
		}
	}
}
