package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration after file, environment and flags",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Validate the effective configuration",
				Action: configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return render(c, cfg)
}

func configValidate(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return cli.Exit(fmt.Sprintf("configuration is invalid: %v", err), 1)
	}
	fmt.Fprintln(c.App.Writer, "configuration is valid")
	return nil
}
