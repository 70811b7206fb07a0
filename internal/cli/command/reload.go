package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshtls/internal/cli/connection"
)

func adminFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "admin",
			Aliases: []string{"a"},
			Usage:   "Admin address, host:port or unix:///path (default: admin.addr, then admin.socket)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: 30 * time.Second,
		},
	}
}

// adminClient returns a client for --admin or the configured admin address.
func adminClient(c *cli.Context) (*connection.HTTPClient, error) {
	addr := c.String("admin")
	if addr == "" {
		cfg, err := loadConfig(c)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		addr = cfg.Admin.Addr
		if addr == "" && cfg.Admin.Socket != "" {
			addr = "unix://" + cfg.Admin.Socket
		}
	}
	if addr == "" {
		return nil, errors.New("admin listener is disabled; pass --admin")
	}
	return connection.NewHTTPClient(addr, c.Duration("timeout")), nil
}

// ReloadCommand returns the reload command.
func ReloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "reload",
		Usage: "Ask a running server to reload its credentials",
		Flags: append(adminFlags(), &cli.BoolFlag{
			Name:  "wait",
			Usage: "Wait for the reload and report its result",
		}),
		Action: reloadAction,
	}
}

func reloadAction(c *cli.Context) error {
	client, err := adminClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	resp, err := client.Reload(ctx, c.Bool("wait"))
	if err != nil {
		var apiErr *connection.APIError
		if errors.As(err, &apiErr) && apiErr.Reason != "" {
			return cli.Exit(fmt.Sprintf("reload failed (%s): %s", apiErr.Reason, apiErr.Message), 1)
		}
		return fmt.Errorf("reload: %w", err)
	}

	if resp.Queued || resp.Bundle == nil {
		fmt.Fprintln(c.App.Writer, "reload queued")
		return nil
	}
	return render(c, resp.Bundle)
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the active bundle and reload statistics of a running server",
		Flags:  adminFlags(),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	client, err := adminClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return render(c, status)
}
