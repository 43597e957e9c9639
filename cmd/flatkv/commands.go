package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/maruel/flatkv/internal/config"
	"github.com/maruel/flatkv/internal/document"
	ferrors "github.com/maruel/flatkv/internal/errors"
	"github.com/maruel/flatkv/internal/server"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// formatFlag registers -format. An empty value means "infer".
func formatFlag(fs *flag.FlagSet) *string {
	return fs.String("format", "", "Document format: json, yaml or toml")
}

func pickFormat(flagValue, path string) (document.Format, error) {
	if flagValue != "" {
		return document.ParseFormat(flagValue)
	}
	return document.FormatFromPath(path), nil
}

func readInput(e *env, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(e.stdin)
	}
	return os.ReadFile(path) //nolint:gosec // G304: path is a command line argument
}

func writeDoc(e *env, v any, f document.Format) error {
	b, err := document.Encode(v, f)
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(b)
	return err
}

func cmdGet(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get KEY")
	}
	var v json.RawMessage
	ok, err := e.codec.GetInto(args[0], &v)
	if err != nil {
		return err
	}
	if !ok {
		return ferrors.NotFound(args[0])
	}
	_, err = fmt.Fprintf(e.stdout, "%s\n", v)
	return err
}

func cmdSet(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: set KEY JSON")
	}
	raw := json.RawMessage(args[1])
	if !json.Valid(raw) {
		return ferrors.InvalidJSON(args[0], errors.New("argument is not valid JSON"))
	}
	return e.codec.Set(args[0], raw)
}

func cmdClear(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("clear")
	all := fs.Bool("all", false, "Delete every key")
	prefix := fs.String("prefix", "", "Delete every key below this prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hasPrefix := false
	fs.Visit(func(f *flag.Flag) { hasPrefix = hasPrefix || f.Name == "prefix" })
	keys := fs.Args()
	switch {
	case *all:
		if hasPrefix || len(keys) != 0 {
			return errors.New("-all cannot be combined with -prefix or keys")
		}
		return e.codec.ClearAll()
	case hasPrefix:
		if len(keys) != 0 {
			return errors.New("-prefix cannot be combined with keys")
		}
		n, err := e.codec.ClearPrefix(*prefix)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Cleared keys", "prefix", *prefix, "count", n)
		return nil
	case len(keys) == 0:
		return errors.New("usage: clear [-all] [-prefix P] [KEY...]")
	default:
		return e.codec.Clear(keys...)
	}
}

func cmdDump(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("dump")
	format := fs.String("format", "json", "Output format: json, yaml or toml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errors.New("usage: dump [-format json|yaml|toml]")
	}
	f, err := document.ParseFormat(*format)
	if err != nil {
		return err
	}
	entries, err := e.codec.Dump()
	if err != nil {
		return err
	}
	return writeDoc(e, entries, f)
}

func cmdFlatten(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("flatten")
	prefix := fs.String("prefix", "", "Key prefix")
	format := formatFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: flatten [-prefix P] [-format F] FILE")
	}
	path := fs.Arg(0)
	f, err := pickFormat(*format, path)
	if err != nil {
		return err
	}
	data, err := readInput(e, path)
	if err != nil {
		return err
	}
	tree, err := document.Decode(data, f)
	if err != nil {
		return err
	}
	return e.codec.Flatten(*prefix, tree)
}

func cmdRestore(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("restore")
	prefix := fs.String("prefix", "", "Key prefix")
	format := formatFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: restore [-prefix P] [-format F] TEMPLATE_FILE")
	}
	path := fs.Arg(0)
	f, err := pickFormat(*format, path)
	if err != nil {
		return err
	}
	data, err := readInput(e, path)
	if err != nil {
		return err
	}
	tmpl, err := document.Decode(data, f)
	if err != nil {
		return err
	}
	if err := e.codec.Restore(*prefix, tmpl); err != nil {
		return err
	}
	return writeDoc(e, tmpl, f)
}

func cmdExpand(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("expand")
	prefix := fs.String("prefix", "", "Key prefix")
	format := fs.String("format", "json", "Output format: json, yaml or toml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errors.New("usage: expand [-prefix P] [-format F]")
	}
	f, err := document.ParseFormat(*format)
	if err != nil {
		return err
	}
	tree, err := e.codec.Expand(*prefix)
	if err != nil {
		return err
	}
	return writeDoc(e, tree, f)
}

func cmdToken(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("token")
	sub := fs.String("sub", "flatkv", "Token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if e.cfg.JWTSecret == "" {
		return errors.New("jwt_secret is not configured")
	}
	tok, err := server.GenerateToken([]byte(e.cfg.JWTSecret), *sub, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.stdout, tok)
	return err
}

func cmdSchema(ctx context.Context, e *env, args []string) error {
	b, err := config.Schema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.stdout, "%s\n", b)
	return err
}

func cmdVersion(ctx context.Context, e *env, args []string) error {
	printVersion(e.stdout)
	return nil
}
