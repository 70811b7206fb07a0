package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshtls/internal/server/httpserver/handler"
)

// LogLevelCommand returns the log-level command.
func LogLevelCommand() *cli.Command {
	return &cli.Command{
		Name:      "log-level",
		Usage:     "Show or change the log level of a running server",
		ArgsUsage: "[debug|info|warn|error]",
		Flags:     adminFlags(),
		Action:    logLevelAction,
	}
}

func logLevelAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return cli.Exit("log-level takes at most one argument", 1)
	}

	client, err := adminClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	var level *handler.LogLevel
	if c.NArg() == 1 {
		level, err = client.SetLogLevel(ctx, c.Args().First())
	} else {
		level, err = client.LogLevel(ctx)
	}
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	return render(c, level)
}
