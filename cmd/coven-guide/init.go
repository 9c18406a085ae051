// ABOUTME: Interactive setup commands for coven-guide
// ABOUTME: init writes the config, starter content and credential; hash-password prints a bcrypt hash

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/2389/coven-guide/internal/auth"
	"github.com/2389/coven-guide/internal/config"
	"github.com/2389/coven-guide/internal/content"
)

func runInit(in io.Reader, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	dir := fs.String("dir", ".", "directory to write the files into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return initFiles(bufio.NewReader(in), os.Stdout, *dir)
}

func initFiles(reader *bufio.Reader, out io.Writer, dir string) error {
	fmt.Fprintln(out, "coven-guide setup")
	fmt.Fprintln(out, "=================")
	fmt.Fprintln(out)

	outputFile := filepath.Join(dir, prompt(reader, out, "Config file name", "guide.yaml"))
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !yes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Content ---")
	contentPath := prompt(reader, out, "Content file (json or yaml)", "content.json")
	rootTitle := prompt(reader, out, "Welcome title", "Help desk")
	rootBody := prompt(reader, out, "Welcome text", "Pick a topic below.")

	fmt.Fprintln(out, "\n--- Admin ---")
	credentialPath := prompt(reader, out, "Credential file", "credential.toml")
	password := prompt(reader, out, "Admin password", "")
	if password == "" {
		return fmt.Errorf("an admin password is required")
	}

	fmt.Fprintln(out, "\n--- Audit ---")
	auditPath := prompt(reader, out, "Audit database (empty keeps it in memory)", "audit.db")

	fmt.Fprintln(out, "\n--- Transport ---")
	kind := prompt(reader, out, "Transport (console/matrix)", config.TransportConsole)
	var homeserver, userID string
	if kind == config.TransportMatrix {
		homeserver = prompt(reader, out, "Homeserver URL", "https://matrix.org")
		userID = prompt(reader, out, "Bot user id", "@guide:matrix.org")
	}

	fmt.Fprintln(out, "\n--- Logging ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# coven-guide configuration\n")
	cfg.WriteString("# Generated by coven-guide init\n\n")

	cfg.WriteString("content:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", contentPath))

	cfg.WriteString("credential:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", credentialPath))

	cfg.WriteString("audit:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", auditPath))

	cfg.WriteString("transport:\n")
	cfg.WriteString(fmt.Sprintf("  kind: %q\n", kind))
	if kind == config.TransportMatrix {
		cfg.WriteString("  matrix:\n")
		cfg.WriteString(fmt.Sprintf("    homeserver: %q\n", homeserver))
		cfg.WriteString(fmt.Sprintf("    user_id: %q\n", userID))
		cfg.WriteString("    access_token: \"${GUIDE_MATRIX_TOKEN}\"\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("policy:\n")
	cfg.WriteString(fmt.Sprintf("  max_login_attempts: %d\n", 3))
	cfg.WriteString("  lockout_duration: \"5m\"\n")
	cfg.WriteString("  admin_idle_timeout: \"15m\"\n")
	cfg.WriteString("  session_ttl: \"24h\"\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// paths in the config are relative to its directory
	base := filepath.Dir(outputFile)
	contentFile := resolve(base, contentPath)
	if _, err := os.Stat(contentFile); err == nil {
		fmt.Fprintf(out, "Keeping existing content %s\n", contentFile)
	} else if err := content.Init(contentFile, rootTitle, rootBody); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}

	if err := writeCredential(resolve(base, credentialPath), password); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start the bot:")
	fmt.Fprintf(out, "  coven-guide serve -config %s\n", outputFile)
	return nil
}

func writeCredential(path, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(map[string]string{"admin_password_hash": hash}); err != nil {
		f.Close()
		return fmt.Errorf("encoding credential: %w", err)
	}
	return f.Close()
}

func runHashPassword(in io.Reader, args []string) error {
	password := ""
	if len(args) > 0 {
		password = args[0]
	} else {
		password = prompt(bufio.NewReader(in), os.Stderr, "Password", "")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
