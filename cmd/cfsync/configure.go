package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cfsync/cfsync/pkg/cloudflare"
	"github.com/cfsync/cfsync/pkg/config"
	"github.com/cfsync/cfsync/pkg/reconcile"
	"github.com/cfsync/cfsync/pkg/record"
)

// menuState drives the configure menu. The menu is a flat state loop;
// every screen transition is an assignment, never a nested call.
type menuState int

const (
	menuMain menuState = iota
	menuInterval
	menuAuth
	menuRecords
	menuExit
)

// configure runs the interactive configuration editor.
func configure(configPath, logLevel string) {
	if !isTerminal() {
		fmt.Println("The configure command needs an interactive terminal.")
		os.Exit(1)
	}

	cfg, store, log := bootstrap(configPath, logLevel)
	in := bufio.NewScanner(os.Stdin)

	save := func(what string) {
		if err := store.Save(cfg); err != nil {
			log.Error("Failed to save config", "err", err)
			os.Exit(1)
		}
		log.Info(fmt.Sprintf("Successfully saved %s to the config file!", what))
	}

	state := menuMain
	for state != menuExit {
		switch state {
		case menuMain:
			state = pickMain(in)
		case menuInterval:
			state = editInterval(in, cfg, save)
		case menuAuth:
			state = editAuth(in, cfg, save)
		case menuRecords:
			state = editRecords(cfg, store, log)
		}
	}
}

func pickMain(in *bufio.Scanner) menuState {
	fmt.Println("1) Seconds to wait per restart")
	fmt.Println("2) Authentication")
	fmt.Println("3) DNS Records")
	fmt.Println("4) Exit")
	switch pick(in, 4) {
	case 1:
		return menuInterval
	case 2:
		return menuAuth
	case 3:
		return menuRecords
	default:
		return menuExit
	}
}

func editInterval(in *bufio.Scanner, cfg *config.Config, save func(string)) menuState {
	v, err := ask(in, "The number of seconds to wait between every dns check and change")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return menuExit
	}
	seconds, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		fmt.Println("Not a number, keeping the current value")
		return menuMain
	}
	cfg.SecondsToWaitPerRestart = uint32(seconds)
	save("seconds to wait per restart")
	return menuMain
}

func editAuth(in *bufio.Scanner, cfg *config.Config, save func(string)) menuState {
	fmt.Println("1) Email")
	fmt.Println("2) Zone ID")
	fmt.Println("3) API Key")
	fmt.Println("4) Back")
	switch pick(in, 4) {
	case 1:
		email, err := askEmail(in)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return menuExit
		}
		cfg.Authentication.Email = email
	case 2:
		zone, err := ask(in, "Your zone id")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return menuExit
		}
		cfg.Authentication.ZoneID = zone
	case 3:
		key, err := ask(in, "Your API Key")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return menuExit
		}
		cfg.Authentication.APIKey = key
	default:
		return menuMain
	}
	save("authentication")
	return menuAuth
}

// editRecords refreshes the record list from the provider and lets the
// user re-pick the synced subset. Afterwards every record carries an
// explicit decision.
func editRecords(cfg *config.Config, store *config.Store, log *slog.Logger) menuState {
	client := cloudflare.New(cloudflare.Config{
		Email:  cfg.Authentication.Email,
		APIKey: cfg.Authentication.APIKey,
		ZoneID: cfg.Authentication.ZoneID,
	})
	rec := reconcile.New(client, &configSaver{cfg: cfg, store: store}, nil, nil)

	log.Info("Attempting to retrieve DNS records")
	merged, err := rec.Reconcile(context.Background(), cfg.Records)
	if err != nil {
		log.Error("Retrieving DNS records failed", "err", err)
		return menuMain
	}
	cfg.Records = merged

	selector := &recordSelector{prompt: "Select which records need to be synced"}
	chosen, err := selector.SelectRecordsToSync(cfg.Records)
	if err != nil {
		log.Error("Failed to select records", "err", err)
		return menuMain
	}
	for i := range cfg.Records {
		if chosen[cfg.Records[i].ID] {
			cfg.Records[i].Sync = record.SyncEnabled
		} else {
			cfg.Records[i].Sync = record.SyncDisabled
		}
	}
	if err := store.Save(cfg); err != nil {
		log.Error("Failed to save config", "err", err)
	} else {
		log.Info("Successfully saved the DNS records list to the config file!")
	}
	return menuMain
}

// pick reads a menu choice between 1 and max; anything else re-asks.
func pick(in *bufio.Scanner, max int) int {
	for {
		v, err := ask(in, "Choose an option")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		n, err := strconv.Atoi(v)
		if err == nil && n >= 1 && n <= max {
			return n
		}
		fmt.Printf("Enter a number between 1 and %d\n", max)
	}
}
