package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshtls/internal/cli/output"
	"github.com/yndnr/meshtls/internal/infra/buildinfo"
	"github.com/yndnr/meshtls/internal/infra/confloader"
	"github.com/yndnr/meshtls/internal/server/config"
	"github.com/yndnr/meshtls/internal/server/mtlsserver"
	"github.com/yndnr/meshtls/internal/telemetry/logger"
)

// App creates the CLI application. handler receives every authenticated
// session accepted by serve, which is also the default action.
func App(handler mtlsserver.Handler) *cli.App {
	return &cli.App{
		Name:    "meshtls-server",
		Usage:   "Mutual TLS listener with SPIFFE peer identities and hot credential reload",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ServeCommand(handler),
			CheckCommand(),
			IdentityCommand(),
			ReloadCommand(),
			StatusCommand(),
			LogLevelCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Action: serveAction(handler),
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"MESHTLS_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "cert",
			Usage: "Server certificate chain (PEM)",
		},
		&cli.StringFlag{
			Name:  "key",
			Usage: "Server private key (PEM)",
		},
		&cli.StringFlag{
			Name:  "ca",
			Usage: "Trust anchors for client certificates (PEM)",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "mTLS listener port",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Wide       bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		ConfigFile: c.String("config"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
	}
}

// flagOverrides maps the flags the user actually set to config keys. Flags
// win over the file and the environment.
func flagOverrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	if c.IsSet("cert") {
		out["credentials.cert_file"] = c.String("cert")
	}
	if c.IsSet("key") {
		out["credentials.key_file"] = c.String("key")
	}
	if c.IsSet("ca") {
		out["credentials.ca_file"] = c.String("ca")
	}
	if c.IsSet("port") {
		out["listener.port"] = c.Int("port")
	}
	if c.IsSet("log-level") {
		out["log.level"] = c.String("log-level")
	}
	return out
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then MESHTLS_* variables, then flags.
func loadConfig(c *cli.Context) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithOverrides(flagOverrides(c))}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogger creates the process logger from cfg and installs it as the
// default.
func initLogger(cfg *config.ServerConfig, w io.Writer) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: w,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// render writes data to the app writer in the format chosen by --output.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.Wide).Format(c.App.Writer, data)
}

// errWriter returns the app's error writer, stderr when unset.
func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
