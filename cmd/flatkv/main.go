// Command flatkv stores nested documents in a flat key-value store.
//
// Usage:
//
//	flatkv [-store DSN] [-config FILE] [-log-level LEVEL] <command> [args]
//
// Run "flatkv help" for the list of commands.
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
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/maruel/flatkv/internal/codec"
	"github.com/maruel/flatkv/internal/config"
	"github.com/maruel/flatkv/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, ll)))
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, ll); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "flatkv: %v\n", err)
		os.Exit(1)
	}
}

// newLogHandler returns a colored handler when w is a terminal.
func newLogHandler(w *os.File, ll *slog.LevelVar) slog.Handler {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return tint.NewHandler(colorable.NewColorable(w), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(w.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	})
}

// env is what every command gets.
type env struct {
	cfg        config.Config
	configPath string
	codec      *codec.Codec
	stdin      io.Reader
	stdout     io.Writer
	level      *slog.LevelVar
}

type command struct {
	name    string
	usage   string
	noStore bool
	run     func(ctx context.Context, e *env, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "get", usage: "get KEY", run: cmdGet},
		{name: "set", usage: "set KEY JSON", run: cmdSet},
		{name: "clear", usage: "clear [-all] [-prefix P] [KEY...]", run: cmdClear},
		{name: "dump", usage: "dump [-format json|yaml|toml]", run: cmdDump},
		{name: "flatten", usage: "flatten [-prefix P] [-format F] FILE", run: cmdFlatten},
		{name: "restore", usage: "restore [-prefix P] [-format F] TEMPLATE_FILE", run: cmdRestore},
		{name: "expand", usage: "expand [-prefix P] [-format F]", run: cmdExpand},
		{name: "serve", usage: "serve [-http ADDR]", run: cmdServe},
		{name: "token", usage: "token [-sub NAME] [-ttl DURATION]", noStore: true, run: cmdToken},
		{name: "schema", usage: "schema", noStore: true, run: cmdSchema},
		{name: "version", usage: "version", noStore: true, run: cmdVersion},
	}
}

func usage(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(w, "usage: flatkv [flags] <command> [args]\n\nflags:\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, "\ncommands:\n")
	for _, c := range commands {
		_, _ = fmt.Fprintf(w, "  %s\n", c.usage)
	}
}

// run parses the global flags, loads the configuration, opens the store and
// dispatches to the command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, ll *slog.LevelVar) error {
	fs := flag.NewFlagSet("flatkv", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	store := fs.String("store", "", "Store DSN (mem:, jsonl:PATH, sqlite:PATH or a .jsonl/.db path)")
	configPath := fs.String("config", "", "TOML configuration file")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(stdout, fs)
			return nil
		}
		return err
	}
	if fs.NArg() == 0 || fs.Arg(0) == "help" {
		usage(stdout, fs)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	// Explicit flags win over the file and the environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			cfg.Store = *store
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	ll.Set(level)

	name := fs.Arg(0)
	idx := -1
	for i := range commands {
		if commands[i].name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("unknown command %q; run \"flatkv help\"", name)
	}
	cmd := commands[idx]

	e := &env{cfg: cfg, configPath: *configPath, stdin: stdin, stdout: stdout, level: ll}
	if !cmd.noStore {
		s, err := storage.Open(cfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		slog.DebugContext(ctx, "Opened store", "dsn", cfg.Store)
		defer func() {
			if err := storage.Close(s); err != nil {
				slog.ErrorContext(ctx, "Failed to close store", "err", err)
			}
		}()
		e.codec = codec.New(s)
	}
	return cmd.run(ctx, e, fs.Args()[1:])
}

func printVersion(w io.Writer) {
	version, goVersion, revision, dirty := getBuildInfo()
	_, _ = fmt.Fprintf(w, "flatkv %s\n", version)
	_, _ = fmt.Fprintf(w, "  Go version: %s\n", goVersion)
	_, _ = fmt.Fprintf(w, "  Revision:   %s\n", revision)
	if dirty {
		_, _ = fmt.Fprintf(w, "  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
