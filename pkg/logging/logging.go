// Package logging provides the slog handler used by cfsync: plain
// `[date time] [LEVEL] message` lines on the console, mirrored into a
// session-numbered log file. The display and show toggles of the
// persisted log config are honoured per line.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cfsync/cfsync/pkg/config"
)

// logsSubdir is the directory under the log folder holding session files.
const logsSubdir = "logs"

var sessionFileRe = regexp.MustCompile(`^session(\d+)\.txt$`)

// SessionNumber picks the log session number for this run: one more
// than the highest existing sessionN.txt when sessions are separated,
// the highest itself when they are not, and 1 when none exist yet.
func SessionNumber(cfg config.LogConfig) (int, error) {
	dir := filepath.Join(cfg.LogFolderPath, logsSubdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("logging: read log folder: %w", err)
	}

	highest := 0
	for _, e := range entries {
		m := sessionFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return 1, nil
	}
	if cfg.SeparateLogsBySession {
		return highest + 1, nil
	}
	return highest, nil
}

// Handler renders records as single formatted lines to the console and,
// when a session file is open, appends the same lines to it. File write
// failures are swallowed: logging must never take the loop down.
type Handler struct {
	display config.DisplayConfig
	show    config.ShowConfig
	level   slog.Level
	attrs   []slog.Attr

	mu      *sync.Mutex
	console io.Writer
	file    io.Writer
}

// New returns a logger for the given log config. The session file is
// opened from cfg.SessionNumber; with a nil session number, or when the
// file cannot be opened, output goes to the console only and a notice
// is printed once.
func New(cfg config.LogConfig, level slog.Level) *slog.Logger {
	h := &Handler{
		display: cfg.Display,
		show:    cfg.Show,
		level:   level,
		mu:      &sync.Mutex{},
		console: os.Stderr,
	}
	if cfg.SessionNumber != nil {
		f, err := openSessionFile(cfg.LogFolderPath, *cfg.SessionNumber)
		if err != nil {
			fmt.Fprintf(os.Stderr, "couldn't open log file, logging to console only: %v\n", err)
		} else {
			h.file = f
		}
	}
	return slog.New(h)
}

func openSessionFile(folder string, session int) (*os.File, error) {
	dir := filepath.Join(folder, logsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := filepath.Join(dir, fmt.Sprintf("session%d.txt", session))
	return os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// Enabled gates by minimum level and by the show toggles: everything
// below WARN counts as a plain log line.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	if level < h.level {
		return false
	}
	switch {
	case level < slog.LevelWarn:
		return h.show.Logs
	case level < slog.LevelError:
		return h.show.Warnings
	default:
		return h.show.Errors
	}
}

// Handle writes one formatted line to the console and the session file.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(timePrefix(r.Time, h.display))
	if h.display.LogType {
		b.WriteString("[" + levelTag(r.Level) + "] ")
	}
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')
	line := b.String()

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := io.WriteString(h.console, line); err != nil {
		return err
	}
	if h.file != nil {
		// Best effort: a full disk must not stop the sync loop.
		_, _ = io.WriteString(h.file, line)
	}
	return nil
}

// WithAttrs returns a handler carrying the extra attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &c
}

// WithGroup is accepted but groups are not rendered; attribute keys are
// flat in this format.
func (h *Handler) WithGroup(string) slog.Handler { return h }

func writeAttr(b *strings.Builder, a slog.Attr) {
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value.Any())
}

func timePrefix(t time.Time, d config.DisplayConfig) string {
	switch {
	case d.Date && d.Time:
		return t.Format("[02/01/2006 15:04:05] ")
	case d.Date:
		return t.Format("[02/01/2006] ")
	case d.Time:
		return t.Format("[15:04:05] ")
	default:
		return ""
	}
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelWarn:
		return "LOG"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
