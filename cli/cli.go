// Package cli parses the hellonode command line and dispatches to the demo
// scenarios or to a long-lived node.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/najoast/hellonode/config"
	"github.com/najoast/hellonode/demo"
	"github.com/najoast/hellonode/display"
	"github.com/najoast/hellonode/logging"
)

// version is overridable at link time:
//
//	go build -ldflags "-X github.com/najoast/hellonode/cli.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

type options struct {
	configPath string
	logLevel   string
	noColor    bool

	responderListen string
	middleListen    string
	issuerListen    string
}

// Execute parses args and runs the requested command. Scenario output goes
// to stdout, logs and usage to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	defaults := demo.DefaultOptions()
	fs := flag.NewFlagSet("hellonode", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVarP(&opts.configPath, "config", "c", "", "Configuration file for serve (searched for when empty)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error or none")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	fs.StringVar(&opts.responderListen, "responder-listen", defaults.ResponderListen, "Listen address of scenario responder nodes")
	fs.StringVar(&opts.middleListen, "middle-listen", defaults.MiddleListen, "Listen address of scenario middle nodes")
	fs.StringVar(&opts.issuerListen, "issuer-listen", defaults.IssuerListen, "Listen address of scenario issuer nodes")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "hellonode %s\n", version)
		return nil
	}
	if showHelp || fs.NArg() == 0 {
		printUsage(stderr, fs)
		return nil
	}

	printer := display.New(stdout)
	if opts.noColor {
		printer.SetColor(false)
	}

	switch cmd := fs.Arg(0); cmd {
	case "list":
		for _, name := range demo.Names() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	case "run":
		if fs.NArg() != 2 {
			return fmt.Errorf("run needs one scenario: %s", strings.Join(demo.Names(), ", "))
		}
		return run(ctx, fs.Arg(1), opts, printer, stderr)
	case "serve":
		if fs.NArg() != 1 {
			return fmt.Errorf("serve takes no arguments")
		}
		return serve(ctx, opts, printer)
	default:
		return fmt.Errorf("unknown command %q (use --help for usage)", cmd)
	}
}

func run(ctx context.Context, scenario string, opts options, printer *display.Printer, stderr io.Writer) error {
	level := "none"
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	minLevel, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}

	return demo.Run(ctx, scenario, demo.Options{
		ResponderListen: opts.responderListen,
		MiddleListen:    opts.middleListen,
		IssuerListen:    opts.issuerListen,
		Printer:         printer,
		Loggers:         logging.MakeLoggers(stderr, minLevel, scenario),
	})
}

func serve(ctx context.Context, opts options, printer *display.Printer) error {
	loader := config.NewLoader()
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = loader.Load(opts.configPath)
	} else {
		cfg, err = loader.AutoLoad()
	}
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = config.LogLevel(strings.ToLower(opts.logLevel))
	}

	minLevel, err := logging.ParseLevel(string(cfg.Log.Level))
	if err != nil {
		return err
	}
	w, closer, err := logging.OpenOutput(cfg.Log.Output)
	if err != nil {
		return err
	}
	defer closer.Close()

	return demo.Serve(ctx, cfg, printer, logging.MakeLoggers(w, minLevel, cfg.App.Name))
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `hellonode v%s

Nodes, workers, routing, secure channels and credentials by example.

Usage:
  hellonode [options] list                 List the scenarios
  hellonode [options] run <scenario>       Run one scenario and exit
  hellonode [options] serve                Run a node until interrupted

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  hellonode run routing-over-two-hops
  hellonode --no-color run credential-exchange
  hellonode serve --config hellonode.yaml --log-level debug
  HELLONODE_APP_ROLE=middle HELLONODE_TRANSPORT_CONNECT=127.0.0.1:4000 \
    HELLONODE_TRANSPORT_LISTEN=127.0.0.1:3000 hellonode serve
`)
}
