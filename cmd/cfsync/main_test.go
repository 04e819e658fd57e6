package main

import (
	"bufio"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cfsync/cfsync/pkg/record"
)

func TestEnvOr_Unset_ReturnsFallback(t *testing.T) {
	if got := envOr("CFSYNC_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("envOr = %q", got)
	}
}

func TestEnvOr_Set_ReturnsValue(t *testing.T) {
	t.Setenv("CFSYNC_TEST_SET", "value")
	if got := envOr("CFSYNC_TEST_SET", "fallback"); got != "value" {
		t.Errorf("envOr = %q", got)
	}
}

func TestEnvOrInt(t *testing.T) {
	t.Setenv("CFSYNC_TEST_INT", "42")
	if got := envOrInt("CFSYNC_TEST_INT", 7); got != 42 {
		t.Errorf("envOrInt = %d", got)
	}
	t.Setenv("CFSYNC_TEST_INT", "not a number")
	if got := envOrInt("CFSYNC_TEST_INT", 7); got != 7 {
		t.Errorf("envOrInt with garbage = %d, want fallback", got)
	}
}

func TestEnvOrBool(t *testing.T) {
	t.Setenv("CFSYNC_TEST_BOOL", "true")
	if !envOrBool("CFSYNC_TEST_BOOL", false) {
		t.Error("envOrBool = false, want true")
	}
	t.Setenv("CFSYNC_TEST_BOOL", "maybe")
	if envOrBool("CFSYNC_TEST_BOOL", false) {
		t.Error("envOrBool with garbage = true, want fallback")
	}
}

func TestEnvOrDuration(t *testing.T) {
	t.Setenv("CFSYNC_TEST_DUR", "90s")
	if got := envOrDuration("CFSYNC_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("envOrDuration = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestIntPtrEqual(t *testing.T) {
	a, b, c := 1, 1, 2
	if !intPtrEqual(nil, nil) || !intPtrEqual(&a, &b) {
		t.Error("equal values reported unequal")
	}
	if intPtrEqual(&a, nil) || intPtrEqual(&a, &c) {
		t.Error("unequal values reported equal")
	}
}

func TestAskEmail_AcceptsAddress(t *testing.T) {
	in := bufio.NewScanner(strings.NewReader("user@example.com\n"))
	got, err := askEmail(in)
	if err != nil || got != "user@example.com" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestAskEmail_RepeatForcesNonAddress(t *testing.T) {
	in := bufio.NewScanner(strings.NewReader("token123\ntoken123\n"))
	got, err := askEmail(in)
	if err != nil || got != "token123" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestAskEmail_DifferentNonAddress_KeepsAsking(t *testing.T) {
	in := bufio.NewScanner(strings.NewReader("one\ntwo\nuser@example.com\n"))
	got, err := askEmail(in)
	if err != nil || got != "user@example.com" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestAsk_StdinClosed_Error(t *testing.T) {
	in := bufio.NewScanner(strings.NewReader(""))
	if _, err := ask(in, "anything"); err == nil {
		t.Fatal("expected error on closed input")
	}
}

func TestSelectionLines_AlignsByLongestName(t *testing.T) {
	proxied := true
	lines := selectionLines([]record.Record{
		{Name: "a.example.com", Content: "1.2.3.4", Proxied: &proxied, TTL: 300},
		{Name: "much-longer.example.com", Content: "1.2.3.5", TTL: 60},
	})
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "a.example.com") || !strings.Contains(lines[0], "true") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Unknown") {
		t.Errorf("line 1 = %q, want Unknown proxy status", lines[1])
	}
	// The content column starts at the same offset on every line.
	if strings.Index(lines[0], "Content") != strings.Index(lines[1], "Content") {
		t.Errorf("columns misaligned:\n%q\n%q", lines[0], lines[1])
	}
}
