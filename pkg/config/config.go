// Package config holds the persisted configuration: credentials, the
// poll interval, log settings, and the managed record list with its
// sync decisions. A config loads in an incomplete form and must be
// completed before the sync loop may start.
package config

import (
	"encoding/json"

	"github.com/cfsync/cfsync/pkg/record"
)

// DefaultPollSeconds is the poll interval applied when the config file
// does not specify one.
const DefaultPollSeconds uint32 = 300

// Credentials are forwarded on every Cloudflare call. The sync loop
// must never run with an absent credentials block; sub-fields that are
// individually missing default to the empty string without further
// checks.
type Credentials struct {
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
	ZoneID string `json:"zone_id"`
}

// DisplayConfig selects which prefixes each log line carries.
type DisplayConfig struct {
	Date    bool `json:"date"`
	Time    bool `json:"time"`
	LogType bool `json:"log_type"`
}

// ShowConfig selects which severities are emitted at all.
type ShowConfig struct {
	Logs     bool `json:"logs"`
	Warnings bool `json:"warnings"`
	Errors   bool `json:"errors"`
}

// LogConfig controls the console and session-file log output.
type LogConfig struct {
	// LogFolderPath is the directory under which the logs/ dir lives.
	LogFolderPath string `json:"log_folder_path"`
	// SeparateLogsBySession starts a fresh sessionN.txt per run.
	SeparateLogsBySession bool `json:"separate_logs_by_session"`
	// SessionNumber is the session picked at startup; nil until known.
	SessionNumber *int `json:"session_number"`
	Display       DisplayConfig `json:"display"`
	Show          ShowConfig    `json:"show"`
}

// DefaultLogConfig returns the log settings used when the file carries
// none: everything displayed, everything shown, one session per run.
func DefaultLogConfig(folder string) LogConfig {
	one := 1
	return LogConfig{
		LogFolderPath:         folder,
		SeparateLogsBySession: true,
		SessionNumber:         &one,
		Display:               DisplayConfig{Date: true, Time: true, LogType: true},
		Show:                  ShowConfig{Logs: true, Warnings: true, Errors: true},
	}
}

// UnmarshalJSON applies per-field defaults: absent booleans default to
// true, not false, matching the persisted format's contract.
func (d *DisplayConfig) UnmarshalJSON(b []byte) error {
	raw := struct {
		Date    *bool `json:"date"`
		Time    *bool `json:"time"`
		LogType *bool `json:"log_type"`
	}{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.Date = orTrue(raw.Date)
	d.Time = orTrue(raw.Time)
	d.LogType = orTrue(raw.LogType)
	return nil
}

// UnmarshalJSON applies per-field defaults; see DisplayConfig.
func (s *ShowConfig) UnmarshalJSON(b []byte) error {
	raw := struct {
		Logs     *bool `json:"logs"`
		Warnings *bool `json:"warnings"`
		Errors   *bool `json:"errors"`
	}{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Logs = orTrue(raw.Logs)
	s.Warnings = orTrue(raw.Warnings)
	s.Errors = orTrue(raw.Errors)
	return nil
}

// UnmarshalJSON fills absent log fields with their defaults. The folder
// default is left empty here; Complete substitutes the config folder.
func (l *LogConfig) UnmarshalJSON(b []byte) error {
	raw := struct {
		LogFolderPath         *string        `json:"log_folder_path"`
		SeparateLogsBySession *bool          `json:"separate_logs_by_session"`
		SessionNumber         *int           `json:"session_number"`
		Display               *DisplayConfig `json:"display"`
		Show                  *ShowConfig    `json:"show"`
	}{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.LogFolderPath != nil {
		l.LogFolderPath = *raw.LogFolderPath
	}
	l.SeparateLogsBySession = orTrue(raw.SeparateLogsBySession)
	l.SessionNumber = raw.SessionNumber
	if raw.Display != nil {
		l.Display = *raw.Display
	} else {
		l.Display = DisplayConfig{Date: true, Time: true, LogType: true}
	}
	if raw.Show != nil {
		l.Show = *raw.Show
	} else {
		l.Show = ShowConfig{Logs: true, Warnings: true, Errors: true}
	}
	return nil
}

func orTrue(b *bool) bool { return b == nil || *b }

// Config is a completed configuration: every field usable for the rest
// of the run. It is read once at startup; only the reconciler (record
// list) and the configure menu mutate it, and it is persisted after
// every mutation.
type Config struct {
	// SecondsToWaitPerRestart is the sleep between sync cycles.
	SecondsToWaitPerRestart uint32 `json:"seconds_to_wait_per_restart"`
	// Authentication carries the Cloudflare credentials.
	Authentication Credentials `json:"authentication"`
	LogConfig      LogConfig   `json:"log_config"`
	// Records is the managed record list with its sync decisions.
	Records []record.Record `json:"dns_config"`
}

// Incomplete is a configuration as loaded from storage: any required
// field may be absent. It becomes a Config through Complete.
type Incomplete struct {
	SecondsToWaitPerRestart *uint32      `json:"seconds_to_wait_per_restart"`
	Authentication          *Credentials `json:"authentication"`
	LogConfig               *LogConfig   `json:"log_config"`
	Records                 []record.Record `json:"dns_config"`
}

// IsComplete reports whether the config can be used as-is. Only the
// structural presence of the authentication block matters; numeric and
// collection fields always have defaults.
func (i *Incomplete) IsComplete() bool {
	return i.Authentication != nil
}

// CredentialsPrompt supplies credentials interactively. A nil prompt
// means the process has no interactive capability.
type CredentialsPrompt interface {
	Credentials() (Credentials, error)
}

// Complete turns an Incomplete into a usable Config. If the
// authentication block is absent the prompt is consulted; with no
// prompt available ErrNotInteractive is returned and the caller must
// terminate without starting the sync loop. defaultLogFolder fills the
// log folder when the file names none.
func (i *Incomplete) Complete(prompt CredentialsPrompt, defaultLogFolder string) (*Config, error) {
	var auth Credentials
	switch {
	case i.Authentication != nil:
		auth = *i.Authentication
	case prompt == nil:
		return nil, ErrNotInteractive
	default:
		var err error
		auth, err = prompt.Credentials()
		if err != nil {
			return nil, err
		}
	}

	seconds := DefaultPollSeconds
	if i.SecondsToWaitPerRestart != nil {
		seconds = *i.SecondsToWaitPerRestart
	}

	logCfg := DefaultLogConfig(defaultLogFolder)
	if i.LogConfig != nil {
		logCfg = *i.LogConfig
		if logCfg.LogFolderPath == "" {
			logCfg.LogFolderPath = defaultLogFolder
		}
	}

	records := i.Records
	if records == nil {
		records = []record.Record{}
	}

	return &Config{
		SecondsToWaitPerRestart: seconds,
		Authentication:          auth,
		LogConfig:               logCfg,
		Records:                 records,
	}, nil
}
