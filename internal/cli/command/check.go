package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshtls/internal/core/credential"
)

// CheckCommand returns the check command.
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Load and validate the credential files without serving",
		Description: "Reads the certificate chain, private key and trust anchors named by the\n" +
			"configuration and flags, and prints the bundle that serve would use.",
		Action: checkAction,
	}
}

func checkAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	b, err := credential.LoadPaths(cfg.Credentials.Paths(), cfg.Credentials.LoadOptions()...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("credential check failed (%s): %v", credential.ReasonOf(err), err), 1)
	}
	return render(c, b.Summarize())
}
