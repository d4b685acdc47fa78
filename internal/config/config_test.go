package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points HOME at an empty directory and clears the variables Load
// reads, so the developer's own config never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{EnvAPI, EnvSessionFile, EnvDB, EnvAddr, EnvEntryRoute, EnvLogLevel, EnvTimeout} {
		t.Setenv(key, "")
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(home); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadClient_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := LoadClient("")
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg != DefaultClientConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadClient_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
client:
  api: https://api.example.com
  entry_route: /register
  timeout: 5s
portal:
  addr: ":9999"
`)
	t.Setenv(EnvAPI, "http://localhost:8000")

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.APIURL != "http://localhost:8000" {
		t.Errorf("APIURL = %q, env should win over file", cfg.APIURL)
	}
	if cfg.EntryRoute != "/register" {
		t.Errorf("EntryRoute = %q", cfg.EntryRoute)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("unset key lost its default: LogFormat = %q", cfg.LogFormat)
	}
}

func TestLoadClient_DefaultFileLocation(t *testing.T) {
	home := isolate(t)
	if err := os.MkdirAll(filepath.Join(home, ".tutordesk"), 0o700); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, filepath.Join(home, ".tutordesk"), "client:\n  session_file: /tmp/s.json\n")

	cfg, err := LoadClient("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionFile != "/tmp/s.json" {
		t.Errorf("SessionFile = %q", cfg.SessionFile)
	}
}

func TestLoadClient_Dotenv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TUTORDESK_TIMEOUT=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides a variable that is set, even to "".
	os.Unsetenv(EnvTimeout)

	cfg, err := LoadClient("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 7*time.Second {
		t.Errorf("Timeout = %s, want 7s from .env", cfg.Timeout)
	}
}

func TestLoadClient_Errors(t *testing.T) {
	dir := isolate(t)

	if _, err := LoadClient(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for explicit missing file")
	}
	bad := writeConfig(t, dir, "client: [not, a, map]\n")
	if _, err := LoadClient(bad); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("err = %v, want parse error", err)
	}

	t.Setenv(EnvEntryRoute, "/dashboard")
	if _, err := LoadClient(""); err == nil || !strings.Contains(err.Error(), "entry_route") {
		t.Errorf("err = %v, want entry_route error", err)
	}
	t.Setenv(EnvEntryRoute, "")

	t.Setenv(EnvAPI, "ftp://example.com")
	if _, err := LoadClient(""); err == nil || !strings.Contains(err.Error(), "http(s)") {
		t.Errorf("err = %v, want api error", err)
	}
	t.Setenv(EnvAPI, "")

	t.Setenv(EnvTimeout, "soon")
	if _, err := LoadClient(""); err == nil {
		t.Error("expected error for bad timeout")
	}
}

func TestLoadPortal(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
portal:
  addr: ":9000"
  session_idle: 2h
  secure_cookies: true
`)
	t.Setenv(EnvDB, ":memory:")

	cfg, err := LoadPortal(path)
	if err != nil {
		t.Fatalf("LoadPortal: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.DBPath != ":memory:" || cfg.SessionIdle != 2*time.Hour || !cfg.SecureCookies {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.EntryRoute != "/login" {
		t.Errorf("EntryRoute = %q", cfg.EntryRoute)
	}
}

func TestPortalConfig_Validate(t *testing.T) {
	cfg := DefaultPortalConfig()
	cfg.Addr = ""
	cfg.SessionIdle = -time.Second
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"addr", "session_idle"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
