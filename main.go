// toggler puts an on/off switch in the system tray. Clicking it runs one of
// two shell commands and flips the icon when the command succeeds.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/nikicat/toggler/internal/config"
	"github.com/nikicat/toggler/internal/logging"
	"github.com/nikicat/toggler/internal/service"
	"github.com/nikicat/toggler/internal/toggle"
	"github.com/nikicat/toggler/internal/tray"
)

var progName = filepath.Base(os.Args[0])

// errUsage means the flag set already printed what went wrong.
var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) > 1 && os.Args[1] == "service" {
		runService(os.Args[2:])
		return
	}

	if err := run(os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// cliFlags holds the raw command-line values.
type cliFlags struct {
	on         string
	off        string
	iconOn     string
	iconOff    string
	title      string
	state      string
	configPath string
	logLevel   string
	logFormat  string
	notify     bool
	help       bool
}

// settings is the merged result of flags, config file and defaults.
type settings struct {
	toggle    toggle.Options
	logLevel  slog.Level
	logFormat string
	notify    bool
}

func newFlagSet(f *cliFlags, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&f.on, "on", "o", toggle.DefaultCommandOn, "command run when switching on")
	fs.StringVarP(&f.off, "off", "O", toggle.DefaultCommandOff, "command run when switching off")
	fs.StringVarP(&f.iconOn, "icon-on", "i", toggle.DefaultIconOn, "icon shown when on")
	fs.StringVarP(&f.iconOff, "icon-off", "I", toggle.DefaultIconOff, "icon shown when off")
	fs.StringVarP(&f.title, "title", "t", toggle.DefaultTitle, "tray item title")
	fs.StringVarP(&f.state, "state", "s", config.StateOff, "initial state (on|off)")
	fs.StringVar(&f.configPath, "config", "", "config file path (default $XDG_CONFIG_HOME/toggler/config.yaml)")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format (text, json)")
	fs.BoolVar(&f.notify, "notify", false, "show a desktop notification when a command fails")
	fs.BoolVarP(&f.help, "help", "h", false, "show this help")
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: %s [options]\n       %s service install|uninstall|status\n\nOptions:\n", progName, progName)
		fs.PrintDefaults()
	}
	return fs
}

// resolve merges values: flags set on the command line win over the config
// file, which wins over the flag defaults.
func resolve(fs *flag.FlagSet, f *cliFlags, cfg *config.Config) (settings, error) {
	pick := func(name, flagValue, configValue string) string {
		if fs.Changed(name) || configValue == "" {
			return flagValue
		}
		return configValue
	}

	state := pick("state", f.state, cfg.State)
	if err := config.ValidateState(state); err != nil {
		return settings{}, err
	}

	format := pick("log-format", f.logFormat, cfg.LogFormat)
	if format != "text" && format != "json" {
		return settings{}, fmt.Errorf("unknown log format %q, use 'text' or 'json'", format)
	}

	notify := f.notify
	if !fs.Changed("notify") && cfg.NotifyFailures != nil {
		notify = *cfg.NotifyFailures
	}

	return settings{
		toggle: toggle.Options{
			CommandOn:  pick("on", f.on, cfg.Commands.On),
			CommandOff: pick("off", f.off, cfg.Commands.Off),
			IconOn:     pick("icon-on", f.iconOn, cfg.Icons.On),
			IconOff:    pick("icon-off", f.iconOff, cfg.Icons.Off),
			Title:      pick("title", f.title, cfg.Title),
			Enabled:    state == config.StateOn,
		},
		logLevel:  logging.ParseLevel(pick("log-level", f.logLevel, cfg.LogLevel)),
		logFormat: format,
		notify:    notify,
	}, nil
}

func loadConfig(explicitPath string) (*config.Config, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		return config.Load(explicitPath)
	}
	path := config.DefaultPath()
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func run(args []string, stderr io.Writer) error {
	var f cliFlags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return errUsage
	}
	if f.help {
		fs.Usage()
		return nil
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		return errUsage
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	s, err := resolve(fs, &f, cfg)
	if err != nil {
		return err
	}

	logger := slog.New(logging.NewHandler(stderr, s.logLevel, s.logFormat))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	state := toggle.New(s.toggle)
	logger.Debug("starting", "title", s.toggle.Title, "enabled", state.Enabled(), "notify", s.notify)

	err = tray.Run(ctx, tray.Config{
		State:          state,
		NotifyFailures: s.notify,
		Ready:          func() { service.SdNotify("READY=1") },
		Logger:         logger,
	})
	service.SdNotify("STOPPING=1")

	if errors.Is(err, context.Canceled) {
		logger.Info("received signal, shutting down")
		return nil
	}
	return err
}

func runService(args []string) {
	if len(args) == 0 {
		printServiceUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "install":
		runServiceInstall(args[1:])
	case "uninstall":
		if err := service.Uninstall(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "status":
		service.Status()
	case "-h", "--help", "help":
		printServiceUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown service command: %s\n\n", args[0])
		printServiceUsage()
		os.Exit(1)
	}
}

func runServiceInstall(args []string) {
	fs := flag.NewFlagSet("service install", flag.ExitOnError)
	start := fs.Bool("start", false, "start the service immediately after installing")
	configPath := fs.String("config", "", "config file path to embed in the unit file")
	fs.Parse(args)

	if err := service.Install(service.Options{
		ConfigPath: *configPath,
		Start:      *start,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printServiceUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %s service <command> [options]

Commands:
  install     Install and enable the systemd user service
  uninstall   Stop, disable, and remove the service
  status      Show service status

Install options:
  --start         Start the service immediately after installing
  --config PATH   Config file path to embed in the unit file
`, progName)
}
