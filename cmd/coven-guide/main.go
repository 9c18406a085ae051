// ABOUTME: Entry point for coven-guide, the conversational help desk bot
// ABOUTME: Dispatches the serve, init, validate and hash-password subcommands

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-guide/internal/auth"
	"github.com/2389/coven-guide/internal/chat"
	"github.com/2389/coven-guide/internal/config"
	"github.com/2389/coven-guide/internal/content"
	"github.com/2389/coven-guide/internal/dedupe"
	"github.com/2389/coven-guide/internal/router"
	"github.com/2389/coven-guide/internal/session"
	"github.com/2389/coven-guide/internal/store"
	"github.com/2389/coven-guide/internal/transport/console"
	"github.com/2389/coven-guide/internal/transport/matrix"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
                                                _     _
  ___ _____   _____ _ __         __ _ _   _(_) __| | ___
 / __/ _ \ \ / / _ \ '_ \ _____ / _' | | | | |/ _' |/ _ \
| (_| (_) \ V /  __/ | | |_____| (_| | |_| | | (_| |  __/
 \___\___/ \_/ \___|_| |_|      \__, |\__,_|_|\__,_|\___|
                                |___/
`

// errShutdown stops the errgroup once the router returns.
var errShutdown = errors.New("router stopped")

func usage() {
	fmt.Println("Usage: coven-guide <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve           Run the help bot")
	fmt.Println("  init            Create config, content and credential files interactively")
	fmt.Println("  validate        Check the config, content document and credential")
	fmt.Println("  hash-password   Print a bcrypt hash for admin_password_hash")
	fmt.Println("  version         Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "init":
		err = runInit(os.Stdin, args)
	case "validate":
		err = runValidate(args)
	case "hash-password":
		err = runHashPassword(os.Stdin, args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resourceFlags are shared by serve and validate.
type resourceFlags struct {
	config     string
	content    string
	credential string
}

func (f *resourceFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "service config file (default $COVEN_GUIDE_CONFIG or ./guide.yaml)")
	fs.StringVar(&f.content, "content", "", "content document, overrides content.path")
	fs.StringVar(&f.credential, "credential", "", "credential document, overrides credential.path")
}

// load resolves the config and applies the path overrides. The returned
// source is the file used, or empty for built-in defaults.
func (f *resourceFlags) load() (*config.Config, string, error) {
	path := f.config
	if path == "" {
		path = os.Getenv("COVEN_GUIDE_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("guide.yaml"); err == nil {
			path = "guide.yaml"
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if f.content != "" {
		cfg.Content.Path = f.content
	}
	if f.credential != "" {
		cfg.Credential.Path = f.credential
	}
	return cfg, path, nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var rf resourceFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, configPath, err := rf.load()
	if err != nil {
		return err
	}

	// the console transport owns stdout, so everything else goes to stderr
	var out io.Writer = os.Stdout
	if cfg.Transport.Kind == config.TransportConsole {
		out = os.Stderr
	}

	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, banner)
	gray := color.New(color.FgHiBlack)
	gray.Fprintf(out, "    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging, out)

	tree, err := content.Open(cfg.Content.Path, logger)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}

	cred, err := auth.LoadCredential(cfg.Credential.Path)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}
	authn, err := auth.NewAuthenticator(cred)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}
	if !cred.IsHashed() {
		logger.Warn("admin password is stored in plain text, consider coven-guide hash-password")
	}

	var audit store.AuditLog
	if cfg.Audit.Path != "" {
		audit, err = store.NewSQLiteStore(cfg.Audit.Path, logger)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
	} else {
		audit = store.NewMemoryStore(0)
	}
	defer audit.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	line := func(label, value string) {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-11s %s\n", label+":", value)
	}
	if configPath != "" {
		line("Config", configPath)
	} else {
		line("Config", "built-in defaults")
	}
	line("Content", fmt.Sprintf("%s (%d topics)", cfg.Content.Path, tree.Len()))
	line("Credential", cfg.Credential.Path)
	if cfg.Audit.Path != "" {
		line("Audit", cfg.Audit.Path)
	} else {
		yellow.Fprint(out, "    ▶ ")
		fmt.Fprintln(out, "Audit:      in memory only")
	}
	line("Transport", cfg.Transport.Kind)
	fmt.Fprintln(out)

	policy := session.Policy{
		MaxLoginAttempts: cfg.Policy.MaxLoginAttempts,
		LockoutDuration:  cfg.Policy.LockoutDuration,
		AdminIdleTimeout: cfg.Policy.AdminIdleTimeout,
		SessionTTL:       cfg.Policy.SessionTTL,
	}
	manager := session.NewManager(session.Config{
		Content:  tree,
		Verifier: authn,
		Audit:    audit,
		Policy:   policy,
		Logger:   logger,
	})
	registry := session.NewRegistry(policy, logger)
	cache := dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxSize)
	r := router.New(router.Config{
		Manager:  manager,
		Registry: registry,
		Dedupe:   cache,
		Audit:    audit,
		Workers:  cfg.Router.Workers,
		Logger:   logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.Run(ctx, cfg.Policy.SweepInterval) })
	g.Go(func() error { return cache.Run(ctx, 0) })

	var tr router.Transport
	switch cfg.Transport.Kind {
	case config.TransportMatrix:
		m := cfg.Transport.Matrix
		mt, err := matrix.New(matrix.Config{
			Homeserver:   m.Homeserver,
			UserID:       m.UserID,
			AccessToken:  m.AccessToken,
			AllowedUsers: m.AllowedUsers,
		}, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return mt.Run(ctx) })
		tr = mt
	default:
		ct := console.New(os.Stdin, os.Stdout)
		defer ct.Close()
		// greet with the root menu so there is something to answer
		if err := r.Handle(ctx, chat.Inbound{UserID: console.DefaultUserID, Text: "/start"}, ct); err != nil {
			return err
		}
		tr = ct
	}

	g.Go(func() error {
		if err := r.Run(ctx, tr); err != nil {
			return err
		}
		return errShutdown
	})

	logger.Info("coven-guide running", "transport", cfg.Transport.Kind)
	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	logStopped(logger, cache, registry)
	return nil
}

// logStopped reports what the process handled before exit.
func logStopped(logger *slog.Logger, cache *dedupe.Cache, registry *session.Registry) {
	logger.Info("coven-guide stopped",
		"duplicates_dropped", cache.Duplicates(),
		"sessions", registry.Len(),
	)
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	var rf resourceFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, configPath, err := rf.load()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	ok := func(format string, a ...any) {
		green.Print("    ✓ ")
		fmt.Printf(format+"\n", a...)
	}

	if configPath != "" {
		ok("config %s", configPath)
	}

	tree, err := content.Open(cfg.Content.Path, setupLogger(config.LoggingConfig{Level: "error"}, io.Discard))
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	ok("content %s: %d topics", cfg.Content.Path, tree.Len())

	cred, err := auth.LoadCredential(cfg.Credential.Path)
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}
	kind := "plain password"
	if cred.IsHashed() {
		kind = "bcrypt hash"
	}
	ok("credential %s: %s", cfg.Credential.Path, kind)
	return nil
}
