package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cfsync/cfsync/pkg/record"
)

// fakePrompt returns fixed credentials.
type fakePrompt struct {
	creds Credentials
	err   error
	calls int
}

func (p *fakePrompt) Credentials() (Credentials, error) {
	p.calls++
	return p.creds, p.err
}

// --- completion ---

func TestComplete_EmptyConfig_PromptsForCredentials(t *testing.T) {
	prompt := &fakePrompt{creds: Credentials{Email: "user@example.com", APIKey: "key", ZoneID: "zone"}}
	cfg, err := (&Incomplete{}).Complete(prompt, "/tmp/cfsync")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if prompt.calls != 1 {
		t.Errorf("prompt called %d times, want 1", prompt.calls)
	}
	if cfg.Authentication.Email != "user@example.com" {
		t.Errorf("Email = %q", cfg.Authentication.Email)
	}
	if cfg.SecondsToWaitPerRestart != DefaultPollSeconds {
		t.Errorf("interval = %d, want default %d", cfg.SecondsToWaitPerRestart, DefaultPollSeconds)
	}
	if cfg.LogConfig.LogFolderPath != "/tmp/cfsync" {
		t.Errorf("log folder = %q", cfg.LogConfig.LogFolderPath)
	}
	if cfg.Records == nil || len(cfg.Records) != 0 {
		t.Errorf("Records = %v, want empty non-nil slice", cfg.Records)
	}
}

func TestComplete_AuthPresent_PromptNotConsulted(t *testing.T) {
	prompt := &fakePrompt{}
	inc := &Incomplete{Authentication: &Credentials{Email: "a@b.c", APIKey: "k", ZoneID: "z"}}
	cfg, err := inc.Complete(prompt, "/tmp")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if prompt.calls != 0 {
		t.Error("prompt must not be consulted when auth is present")
	}
	if cfg.Authentication.APIKey != "k" {
		t.Errorf("APIKey = %q", cfg.Authentication.APIKey)
	}
}

func TestComplete_NoAuthNoPrompt_ErrNotInteractive(t *testing.T) {
	_, err := (&Incomplete{}).Complete(nil, "/tmp")
	if !errors.Is(err, ErrNotInteractive) {
		t.Fatalf("err = %v, want ErrNotInteractive", err)
	}
}

func TestComplete_PromptFailure_Propagates(t *testing.T) {
	prompt := &fakePrompt{err: errors.New("stdin closed")}
	_, err := (&Incomplete{}).Complete(prompt, "/tmp")
	if err == nil || errors.Is(err, ErrNotInteractive) {
		t.Fatalf("err = %v, want the prompt's error", err)
	}
}

func TestComplete_PartialCredentials_UsedAsIs(t *testing.T) {
	inc := &Incomplete{Authentication: &Credentials{Email: "a@b.c"}}
	cfg, err := inc.Complete(nil, "/tmp")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if cfg.Authentication.APIKey != "" || cfg.Authentication.ZoneID != "" {
		t.Errorf("missing sub-fields must default to empty, got %+v", cfg.Authentication)
	}
}

func TestIsComplete(t *testing.T) {
	if (&Incomplete{}).IsComplete() {
		t.Error("config without auth reported complete")
	}
	if !(&Incomplete{Authentication: &Credentials{}}).IsComplete() {
		t.Error("config with auth block reported incomplete")
	}
}

// --- decoding defaults ---

func TestLogConfig_AbsentBooleans_DefaultTrue(t *testing.T) {
	var lc LogConfig
	if err := json.Unmarshal([]byte(`{"log_folder_path":"/var/log/cfsync"}`), &lc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !lc.SeparateLogsBySession {
		t.Error("SeparateLogsBySession must default to true")
	}
	if !lc.Display.Date || !lc.Display.Time || !lc.Display.LogType {
		t.Errorf("Display defaults wrong: %+v", lc.Display)
	}
	if !lc.Show.Logs || !lc.Show.Warnings || !lc.Show.Errors {
		t.Errorf("Show defaults wrong: %+v", lc.Show)
	}
}

func TestLogConfig_ExplicitFalse_Respected(t *testing.T) {
	var lc LogConfig
	err := json.Unmarshal([]byte(`{
		"separate_logs_by_session": false,
		"display": {"date": false},
		"show": {"warnings": false}
	}`), &lc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if lc.SeparateLogsBySession {
		t.Error("explicit false overwritten")
	}
	if lc.Display.Date || !lc.Display.Time {
		t.Errorf("Display = %+v", lc.Display)
	}
	if lc.Show.Warnings || !lc.Show.Logs {
		t.Errorf("Show = %+v", lc.Show)
	}
}

// --- store ---

func testStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Path: filepath.Join(t.TempDir(), "config.json")}
}

func TestStore_Load_MissingFile_ErrNotExist(t *testing.T) {
	_, err := testStore(t).Load()
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestStore_Load_InvalidJSON_Error(t *testing.T) {
	s := testStore(t)
	if err := os.WriteFile(s.Path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := s.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestStore_SaveLoad_RoundTripsSyncStates(t *testing.T) {
	s := testStore(t)
	proxied := false
	cfg := &Config{
		SecondsToWaitPerRestart: 60,
		Authentication:          Credentials{Email: "a@b.c", APIKey: "k", ZoneID: "z"},
		LogConfig:               DefaultLogConfig("/tmp/cfsync"),
		Records: []record.Record{
			{Type: record.TypeA, Name: "on.example.com", Content: "1.2.3.4", Proxied: &proxied, TTL: 300, ID: "r1", Sync: record.SyncEnabled},
			{Type: record.TypeA, Name: "off.example.com", Content: "1.2.3.4", TTL: 300, ID: "r2", Sync: record.SyncDisabled},
			{Type: record.TypeA, Name: "new.example.com", Content: "1.2.3.4", TTL: 300, ID: "r3", Sync: record.SyncUndecided},
		},
	}
	if err := s.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	inc, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(inc.Records) != 3 {
		t.Fatalf("got %d records", len(inc.Records))
	}
	want := []record.SyncState{record.SyncEnabled, record.SyncDisabled, record.SyncUndecided}
	for i, w := range want {
		if inc.Records[i].Sync != w {
			t.Errorf("record %d sync = %v, want %v", i, inc.Records[i].Sync, w)
		}
	}
}

func TestStore_Save_TabIndented(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Config{LogConfig: DefaultLogConfig("/tmp")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "\n\t\"") {
		t.Errorf("config file not tab-indented:\n%s", b)
	}
}

func TestStore_Save_CreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Path: filepath.Join(dir, "nested", "config.json")}
	if err := s.Save(&Config{LogConfig: DefaultLogConfig(dir)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(s.Path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
}
