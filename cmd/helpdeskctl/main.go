// helpdeskctl is a terminal client for the helpdesk API. It shows the
// ticket board, moves tickets between columns and follows comment threads.
//
// Configuration comes from the environment (or a .env file):
// HELPDESK_API_URL, HELPDESK_TOKEN, HELPDESK_TIMEOUT_SECONDS and
// HELPDESK_POLL_SECONDS. Flags override them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/client"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"login", "sign in and print the token", (*app).login},
	{"whoami", "show the signed-in user", (*app).whoami},
	{"staff", "list staff users", (*app).staff},
	{"board", "show tickets grouped by status", (*app).board},
	{"move", "move a ticket to a column, or next to another ticket", (*app).move},
	{"create", "open a ticket", (*app).create},
	{"edit", "change a ticket", (*app).edit},
	{"delete", "delete a ticket (staff)", (*app).delete},
	{"view", "show a ticket and its comments", (*app).view},
	{"comment", "add a comment", (*app).comment},
}

var usages = map[string]string{
	"login":   "login --username NAME --password PASS [--register --email ADDR [--staff]]",
	"whoami":  "whoami",
	"staff":   "staff",
	"board":   "board",
	"move":    "move TICKET STATUS|TICKET",
	"create":  "create --title T --description D --type T --priority P [--image FILE]...",
	"edit":    "edit TICKET [--status S] [--assign USER|--unassign] [--remove-image N]... [--image FILE]...",
	"delete":  "delete TICKET",
	"view":    "view TICKET [--watch]",
	"comment": "comment TICKET TEXT...",
}

// app carries what every command needs.
type app struct {
	client *client.Client
	logger *zap.Logger
	poll   time.Duration
	out    io.Writer
	errOut io.Writer
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("helpdeskctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	baseURL := flagSet.String("url", cfg.Client.BaseURL, "API base URL including the route prefix")
	token := flagSet.String("token", cfg.Client.Token, "bearer token")
	logLevel := flagSet.String("log-level", "warn", "log level for diagnostics on stderr")
	poll := flagSet.Duration("poll", cfg.Client.PollInterval(), "comment refresh interval")
	help := flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	rest := flagSet.Args()
	if *help || len(rest) == 0 {
		printHelp(stderr, flagSet)
		if len(rest) == 0 && !*help {
			return errors.New("missing command")
		}
		return nil
	}

	logger, err := observability.NewLogger(config.LoggerConfig{Level: *logLevel, Output: "stderr"}, "production")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	api, err := client.New(client.Config{
		BaseURL:    *baseURL,
		Token:      *token,
		HTTPClient: &http.Client{Timeout: cfg.Client.Timeout()},
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{client: api, logger: logger, poll: *poll, out: stdout, errOut: stderr}
	for _, cmd := range commands {
		if cmd.name == rest[0] {
			if err := cmd.run(a, ctx, rest[1:]); !errors.Is(err, pflag.ErrHelp) {
				return err
			}
			return nil
		}
	}
	return fmt.Errorf("unknown command %q", rest[0])
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "helpdeskctl: helpdesk ticket client\n\nUsage:\n  helpdeskctl [flags] COMMAND [args]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}
