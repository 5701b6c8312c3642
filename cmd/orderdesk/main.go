// Command orderdesk manages orders and products from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"orderdesk/pkg/cache"
	"orderdesk/pkg/client"
	"orderdesk/pkg/config"
	"orderdesk/pkg/logger"
	"orderdesk/pkg/otel"
	"orderdesk/pkg/view"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(newApp(cfg, os.Stdin, os.Stdout, os.Stderr), os.Args, os.Stderr))
}

// run executes the command line and prints a failure once. Notifications
// only announce successes, so every error reaches the user through here.
func run(app *cli.App, args []string, errOut io.Writer) int {
	if err := app.Run(args); err != nil {
		fmt.Fprintln(errOut, "error:", client.Message(err))
		return 1
	}
	return 0
}

func newApp(cfg config.Client, in io.Reader, out, errOut io.Writer) *cli.App {
	env := &env{in: bufio.NewReader(in), out: out, errOut: errOut}
	return &cli.App{
		Name:      "orderdesk",
		Usage:     "manage orders and products",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: cfg.APIURL, Usage: "API base URL"},
			&cli.StringFlag{Name: "user", Value: cfg.Username, Usage: "log in as this user"},
			&cli.StringFlag{Name: "password", Value: cfg.Password, Usage: "password for --user"},
			&cli.DurationFlag{Name: "timeout", Value: cfg.Timeout, Usage: "per-request timeout"},
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel, Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask before deleting"},
		},
		Before: env.setup,
		After:  env.teardown,
		Commands: []*cli.Command{
			ordersCommand(env),
			productsCommand(env),
		},
	}
}

// env carries what every command needs. It is filled in by setup.
type env struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	log     *logger.Logger
	store   *cache.Store
	client  *client.Client
	confirm cache.Confirmer
}

func (e *env) setup(c *cli.Context) error {
	level, err := logger.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	e.log = logger.New(e.errOut, level, "orderdesk-cli", otel.GetTraceID)

	e.client, err = client.New(c.String("api-url"),
		client.WithTimeout(c.Duration("timeout")),
		client.WithLogger(e.log),
	)
	if err != nil {
		return err
	}
	if user := c.String("user"); user != "" {
		if err := e.client.Login(c.Context, user, c.String("password")); err != nil {
			return fmt.Errorf("login: %s", client.Message(err))
		}
	}
	e.store = cache.New(e.client, e.log)
	e.confirm = promptConfirmer{in: e.in, out: e.errOut}
	if c.Bool("yes") {
		e.confirm = cache.AlwaysConfirm
	}
	return nil
}

func (e *env) teardown(*cli.Context) error {
	if e.store != nil {
		e.store.Close()
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
	return nil
}

func (e *env) notifier() view.Notifier {
	return view.NotifierFunc(func(n view.Notification) {
		if n.Level == view.LevelError {
			return
		}
		fmt.Fprintf(e.errOut, "ok: %s\n", n.Message)
	})
}

// promptConfirmer asks on the terminal and accepts "y" or "yes".
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
