package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/cfsync/cfsync/pkg/config"
	"github.com/cfsync/cfsync/pkg/record"
)

// isTerminal reports whether the process has an interactive surface:
// stdin, stdout, and stderr must all be terminals.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stdout.Fd())) &&
		term.IsTerminal(int(os.Stderr.Fd()))
}

// terminalPrompt collects credentials from the terminal.
type terminalPrompt struct{}

// Credentials asks for the three credential fields. The email check is
// advisory: entering the same non-address value twice forces its use.
func (p *terminalPrompt) Credentials() (config.Credentials, error) {
	in := bufio.NewScanner(os.Stdin)

	email, err := askEmail(in)
	if err != nil {
		return config.Credentials{}, err
	}
	zoneID, err := ask(in, "Your zone id")
	if err != nil {
		return config.Credentials{}, err
	}
	apiKey, err := ask(in, "Your API Key")
	if err != nil {
		return config.Credentials{}, err
	}
	return config.Credentials{Email: email, APIKey: apiKey, ZoneID: zoneID}, nil
}

func ask(in *bufio.Scanner, prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("stdin closed while reading %q", prompt)
	}
	return strings.TrimSpace(in.Text()), nil
}

func askEmail(in *bufio.Scanner) (string, error) {
	var last string
	for {
		v, err := ask(in, "Your email")
		if err != nil {
			return "", err
		}
		if strings.Contains(v, "@") || (last != "" && v == last) {
			return v, nil
		}
		fmt.Println("This is not a mail address; type the same value again to force use")
		last = v
	}
}

// recordSelector is the interactive collaborator that resolves sync
// decisions: it lists the candidates and reads a selection of numbers.
type recordSelector struct {
	prompt string
}

// SelectRecordsToSync presents the candidates and returns the chosen
// id set. An empty answer chooses nothing.
func (s *recordSelector) SelectRecordsToSync(candidates []record.Record) (map[string]bool, error) {
	fmt.Println(s.prompt)
	for i, line := range selectionLines(candidates) {
		fmt.Printf("  %2d) %s\n", i+1, line)
	}
	fmt.Print("Enter numbers separated by spaces (empty for none): ")

	in := bufio.NewScanner(os.Stdin)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("stdin closed while selecting records")
	}

	chosen := make(map[string]bool)
	for _, field := range strings.FieldsFunc(in.Text(), func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	}) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > len(candidates) {
			return nil, fmt.Errorf("invalid selection %q", field)
		}
		chosen[candidates[n-1].ID] = true
	}
	return chosen, nil
}

// selectionLines renders the candidates in aligned columns: name,
// content, proxy status, TTL.
func selectionLines(records []record.Record) []string {
	longest := 0
	for _, r := range records {
		if len(r.Name) > longest {
			longest = len(r.Name)
		}
	}
	lines := make([]string, len(records))
	for i, r := range records {
		proxied := "Unknown"
		if r.Proxied != nil {
			proxied = strconv.FormatBool(*r.Proxied)
		}
		lines[i] = fmt.Sprintf("%-7s %-*s %-10s %-17s %-15s %-8s %-6s %d",
			"Name", longest+3, r.Name,
			"Content", r.Content,
			"Proxy Status", proxied,
			"TTL", r.TTL)
	}
	return lines
}
