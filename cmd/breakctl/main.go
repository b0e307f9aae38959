package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"break-reminder-backend/internal/client"
	"break-reminder-backend/internal/logger"
	"break-reminder-backend/internal/model"
	"break-reminder-backend/internal/reminder"
)

const usage = `usage: breakctl [flags] <command> [args]

commands:
  health                     check the server
  config                     show the user's config
  config set <minutes> <on|off>
                             create or update the user's config
  notify [message]           create a notification now
  dismiss <id>               dismiss a notification and print the remaining ones
  list [-all]                list notifications, newest first
  watch                      run the reminder timer until interrupted

flags:
`

type options struct {
	server   string
	proxy    string
	userID   string
	timeout  time.Duration
	logLevel string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "breakctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("breakctl", flag.ContinueOnError)
	fs.StringVar(&opts.server, "server", envOr("BREAK_SERVER_URL", "http://localhost:2022"), "server base URL")
	fs.StringVar(&opts.proxy, "proxy", os.Getenv("BREAK_HTTP_PROXY"), "HTTP proxy URL")
	fs.StringVar(&opts.userID, "user", envOr("BREAK_USER_ID", os.Getenv("USER")), "user id")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	log, err := logger.New(opts.logLevel, "console")
	if err != nil {
		return err
	}
	defer log.Sync()

	c, err := client.New(opts.server, opts.proxy, client.WithTimeout(opts.timeout))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd != "health" && opts.userID == "" {
		return errors.New("a user id is required (-user or BREAK_USER_ID)")
	}

	switch cmd {
	case "health":
		h, err := c.Healthcheck(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, h)
	case "config":
		return runConfig(ctx, c, opts.userID, rest, out)
	case "notify":
		msg := model.DefaultNotificationMessage
		if len(rest) > 0 {
			msg = rest[0]
		}
		session, err := openSession(ctx, c, opts.userID, log, reminder.WithMessage(msg))
		if err != nil {
			return err
		}
		defer session.Close()
		n, err := session.Trigger(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, n)
	case "dismiss":
		if len(rest) != 1 {
			return errors.New("usage: dismiss <id>")
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid notification id %q", rest[0])
		}
		session, err := openSession(ctx, c, opts.userID, log)
		if err != nil {
			return err
		}
		defer session.Close()
		if err := session.Dismiss(ctx, id); err != nil {
			return err
		}
		return printJSON(out, session.Notifications())
	case "list":
		lfs := flag.NewFlagSet("list", flag.ContinueOnError)
		all := lfs.Bool("all", false, "include dismissed notifications")
		if err := lfs.Parse(rest); err != nil {
			return err
		}
		list, err := c.ListNotifications(ctx, opts.userID, *all)
		if err != nil {
			return err
		}
		return printJSON(out, list)
	case "watch":
		return watch(ctx, c, opts.userID, log, out)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runConfig(ctx context.Context, c *client.Client, userID string, args []string, out io.Writer) error {
	if len(args) == 0 {
		cfg, err := c.GetConfig(ctx, userID)
		if err != nil {
			return err
		}
		return printJSON(out, cfg)
	}
	if args[0] != "set" || len(args) != 3 {
		return errors.New("usage: config set <minutes> <on|off>")
	}

	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid interval %q", args[1])
	}
	var active bool
	switch args[2] {
	case "on":
		active = true
	case "off":
	default:
		return fmt.Errorf("expected on or off, got %q", args[2])
	}

	existing, err := c.GetConfig(ctx, userID)
	if err != nil {
		return err
	}
	var cfg *model.BreakReminderConfig
	if existing == nil {
		cfg, err = c.CreateConfig(ctx, userID, minutes, active)
	} else {
		cfg, err = c.UpdateConfig(ctx, existing.ID, model.ConfigPatch{IntervalMinutes: &minutes, IsActive: &active})
	}
	if err != nil {
		return err
	}
	return printJSON(out, cfg)
}

// openSession loads a reminder session for one-shot commands. The caller closes it.
func openSession(ctx context.Context, c *client.Client, userID string, log *zap.Logger, opts ...reminder.Option) (*reminder.Session, error) {
	session := reminder.NewSession(c, userID, log, opts...)
	if err := session.Load(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// watch runs a reminder session and prints each notification as it fires.
func watch(ctx context.Context, c *client.Client, userID string, log *zap.Logger, out io.Writer) error {
	session := reminder.NewSession(c, userID, log, reminder.WithNotifyHook(func(n model.BreakNotification) {
		fmt.Fprintf(out, "[%s] %s (id %d)\n", n.CreatedAt.Local().Format(time.Kitchen), n.Message, n.ID)
	}))
	defer session.Close()

	if err := session.Load(ctx); err != nil {
		return err
	}
	if next, ok := session.NextBreakTime(); ok {
		fmt.Fprintf(out, "next break at %s\n", next.Local().Format(time.Kitchen))
	} else {
		fmt.Fprintln(out, "reminders are off for this user; use 'config set' to enable them")
	}

	<-ctx.Done()
	return nil
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
