// cmd/agentctl/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Annany2002/nebula-cms/internal/client"
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/draft"
	"github.com/Annany2002/nebula-cms/internal/editor"
	"github.com/Annany2002/nebula-cms/internal/form"
	"github.com/Annany2002/nebula-cms/internal/logger"
	"github.com/Annany2002/nebula-cms/internal/metrics"
)

var (
	customLog = logger.NewLogger()
)

const usage = `usage: agentctl [flags] <command> [args]

commands:
  list                      print every agent
  get <key>                 print one agent
  set <key> field=value...  create or update an agent and save
  delete <key>              remove an agent and save

flags:
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		customLog.Warnf("Warning: Error loading .env file: %v", err)
	}

	fs := flag.NewFlagSet("agentctl", flag.ExitOnError)
	baseURL := fs.String("url", envOr("NEBULA_URL", "http://localhost:8080"), "CMS API base URL")
	email := fs.String("email", os.Getenv("NEBULA_EMAIL"), "login email")
	password := fs.String("password", os.Getenv("NEBULA_PASSWORD"), "login password")
	token := fs.String("token", os.Getenv("NEBULA_TOKEN"), "bearer token; skips login when set")
	timeout := fs.Duration("timeout", 10*time.Second, "per-request timeout")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	c := client.New(client.Config{BaseURL: *baseURL, Timeout: *timeout, Token: *token})
	if *token == "" {
		if _, err := c.Login(ctx, *email, *password); err != nil {
			customLog.Fatalf("Login failed: %v", err)
		}
	}

	if err := run(ctx, c, fs.Args(), os.Stdout); err != nil {
		var valErr *client.APIError
		if errors.As(err, &valErr) && len(valErr.Errors) > 0 {
			for field, msg := range valErr.Errors {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
		}
		customLog.Fatalf("agentctl %s: %v", fs.Arg(0), err)
	}
}

func run(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	ed, err := newEditor(ctx, c)
	if err != nil {
		return err
	}

	switch cmd := args[0]; cmd {
	case "list":
		if err := ed.Load(ctx); err != nil {
			return err
		}
		return printJSON(out, ed.Store().Working())

	case "get":
		if len(args) != 2 {
			return errors.New("get takes exactly one key")
		}
		rec, err := ed.Open(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(out, rec)

	case "set":
		if len(args) < 2 {
			return errors.New("set needs a key")
		}
		input, err := parseAssignments(args[2:])
		if err != nil {
			return err
		}
		if err := ed.Load(ctx); err != nil {
			return err
		}
		if current, ok := ed.Store().Get(args[1]); ok {
			// unnamed fields keep their current values
			for field, value := range current {
				if _, set := input[field]; !set {
					input[field] = value
				}
			}
			err = ed.Update(args[1], input)
		} else {
			err = ed.Create(args[1], input)
		}
		if err != nil {
			return err
		}
		return save(ctx, ed, out)

	case "delete":
		if len(args) != 2 {
			return errors.New("delete takes exactly one key")
		}
		if err := ed.Load(ctx); err != nil {
			return err
		}
		if !ed.Store().Has(args[1]) {
			return fmt.Errorf("%w: '%s'", editor.ErrUnknownKey, args[1])
		}
		ed.Delete(args[1])
		return save(ctx, ed, out)

	default:
		return fmt.Errorf("unknown command '%s'", cmd)
	}
}

// newEditor builds an agents editor. A CMS document without an agents table
// leaves validation to the server.
func newEditor(ctx context.Context, c *client.Client) (*editor.Editor, error) {
	doc, err := c.FetchConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch CMS document: %w", err)
	}

	var plan *form.Plan
	if table, err := doc.Table(cmsconfig.AgentsTable); err == nil {
		if plan, err = form.Compile(table); err != nil {
			return nil, err
		}
	}

	store := draft.NewStore(c, draft.WithName(cmsconfig.AgentsTable), draft.WithObserver(metrics.StoreObserver{}))
	return editor.New(store, plan), nil
}

func save(ctx context.Context, ed *editor.Editor, out io.Writer) error {
	if !ed.Store().Differs() {
		fmt.Fprintln(out, "nothing to save")
		return nil
	}
	if err := ed.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved %d agent(s)\n", len(ed.Store().Committed()))
	return nil
}

// parseAssignments turns field=value pairs into editor input. Values are
// passed as strings; the form rules coerce them.
func parseAssignments(pairs []string) (map[string]any, error) {
	input := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got '%s'", pair)
		}
		input[field] = value
	}
	return input, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
