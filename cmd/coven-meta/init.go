// ABOUTME: Interactive "coven-meta init" setup
// ABOUTME: Prompts for the user and a first matrix account, then writes a validated YAML config

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-meta/internal/config"
)

const defaultDatabasePath = "~/.local/share/coven/meta.db"

func runInit(in io.Reader, configPath string) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println("    Interactive Setup")
	fmt.Println("    -----------------")
	fmt.Println()

	reader := bufio.NewReader(in)
	ask := func(prompt, fallback string) string {
		green.Print("    ▶ ")
		fmt.Print(prompt)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return fallback
		}
		return answer
	}

	if _, err := os.Stat(configPath); err == nil {
		yellow.Printf("    Config already exists at %s\n", configPath)
		fmt.Print("    Overwrite? [y/N]: ")
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("    Aborted.")
			return nil
		}
		fmt.Println()
	}

	cfg := config.Config{
		User:     config.UserConfig{ID: ask("User name: ", "")},
		Database: config.DatabaseConfig{Path: ask(fmt.Sprintf("Database path [%s]: ", defaultDatabasePath), defaultDatabasePath)},
		Relay: config.RelayConfig{
			QuotePrefix:    config.DefaultQuotePrefix,
			MergeWindowRaw: config.DefaultMergeWindow.String(),
			EchoTTLRaw:     config.DefaultEchoTTL.String(),
		},
		Logging: config.LoggingConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
	}

	homeserver := ask("Matrix homeserver URL [https://matrix.org]: ", "https://matrix.org")
	matrixUser := ask("Matrix user id (empty to skip): ", "")
	if matrixUser != "" {
		token := ask("Matrix access token: ", "")
		contacts := ask("Contacts, comma separated: ", "")
		cfg.Accounts = append(cfg.Accounts, config.AccountConfig{
			Driver:      config.DriverMatrix,
			ID:          matrixUser,
			Homeserver:  homeserver,
			AccessToken: token,
			Contacts:    splitList(contacts),
		})
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if _, err := config.Parse(string(out), false); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content := "# coven-meta configuration\n# Generated by coven-meta init\n\n" + string(out)
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println()
	green.Printf("    ✓ Config written to %s\n", configPath)
	fmt.Println()
	fmt.Println("    Next steps:")
	fmt.Println("    1. Run: coven-meta")
	fmt.Println()

	return nil
}

func splitList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string { return strings.TrimSpace(p) })
	return lo.Compact(parts)
}
