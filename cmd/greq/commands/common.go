package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/greq"
	"git.home.luguber.info/inful/greq/internal/cli"
	"git.home.luguber.info/inful/greq/internal/config"
	"git.home.luguber.info/inful/greq/internal/version"
)

// Global holds state shared by every command.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// CLI is the root command.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (defaults to greq.yaml when present)" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Request RequestCmd `cmd:"" help:"Send an HTTP request and print the response"`
	Docs    DocsCmd    `cmd:"" help:"Render, inspect and check the documentation site"`
	Echo    EchoCmd    `cmd:"" help:"Run the echo server used by tests and demos"`

	cfg    *config.Config
	cfgErr error
}

// AfterApply loads the configuration and installs the process logger.
// A broken configuration is reported by the command that needs it, so
// that --help and --version keep working.
func (c *CLI) AfterApply(g *Global) error {
	c.cfg, c.cfgErr = c.loadConfig()

	level := slog.LevelInfo
	format := config.LogFormatText
	if c.cfg != nil {
		level = c.cfg.Logging.Level.SlogLevel()
		format = c.cfg.Logging.Format
	}
	if c.Verbose {
		level = slog.LevelDebug
	}

	out := g.Stderr
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	}
	g.Logger = slog.New(handler)
	slog.SetDefault(g.Logger)
	return nil
}

func (c *CLI) loadConfig() (*config.Config, error) {
	if c.Config == "" {
		return config.LoadOrDefault(config.DefaultPath, false)
	}
	return config.Load(c.Config)
}

// Settings returns the loaded configuration.
func (c *CLI) Settings() (*config.Config, error) {
	if c.cfgErr != nil {
		return nil, c.cfgErr
	}
	if c.cfg == nil {
		return config.Default(), nil
	}
	return c.cfg, nil
}

// Execute parses args, runs the selected command and returns the process
// exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := &CLI{}
	global := &Global{Logger: slog.Default(), Stdout: stdout, Stderr: stderr}

	exited, exitCode := false, cli.ExitOK
	parser, err := kong.New(root,
		kong.Name("greq"),
		kong.Description("Send HTTP requests and maintain the greq documentation site."),
		kong.Vars{"version": version.String()},
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exited, exitCode = true, code }),
		kong.Bind(global, root),
	)
	if err != nil {
		return cli.NewErrorAdapter(false, nil).Handle(stderr, greq.WrapError(err, greq.CategoryInternal, "failed to build command line parser").Build())
	}

	kctx, err := parser.Parse(args)
	if exited {
		return exitCode
	}
	adapter := cli.NewErrorAdapter(root.Verbose, global.Logger)
	if err != nil {
		return adapter.Handle(stderr, greq.NewError(greq.CategoryValidation, err.Error()).Build())
	}
	return adapter.Handle(stderr, kctx.Run())
}
