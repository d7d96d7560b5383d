package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/logrusorgru/aurora/v4"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/projectdiscovery/ipsweep/pkg/probe"
	"github.com/projectdiscovery/ipsweep/pkg/sweep"
	"github.com/projectdiscovery/ipsweep/pkg/version"
	envutil "github.com/projectdiscovery/utils/env"
	fileutil "github.com/projectdiscovery/utils/file"
)

var au = aurora.New(aurora.WithColors(true))

// DefaultGracePeriod lets hosts already being pinged finish after Ctrl+C
const DefaultGracePeriod = 500 * time.Millisecond

var (
	ConcurrencyEnv = envutil.GetEnvOrDefault("IPSWEEP_CONCURRENCY", "")
	MaxHostsEnv    = envutil.GetEnvOrDefault("IPSWEEP_MAX_HOSTS", "")
	ResolverEnv    = envutil.GetEnvOrDefault("IPSWEEP_RESOLVER", "")
	OutputEnv      = envutil.GetEnvOrDefault("IPSWEEP_OUTPUT", "")
)

// Options contains the configuration options for a sweep.
type Options struct {
	Targets goflags.StringSlice
	Local   bool

	Concurrency    int
	ProbeTimeout   time.Duration
	ResolveTimeout time.Duration
	MaxHosts       int
	GracePeriod    time.Duration
	Prioritize     bool

	PingMode      string
	Resolver      string
	ForwardLookup bool

	Output string
	Export bool
	JSON   bool

	ConfigFile string
	Verbose    bool
	Silent     bool
	NoColor    bool
	Version    bool
}

// Config is the YAML form of the options accepted by -config.
type Config struct {
	Targets        []string      `yaml:"targets"`
	Concurrency    int           `yaml:"concurrency"`
	ProbeTimeout   time.Duration `yaml:"probe-timeout"`
	ResolveTimeout time.Duration `yaml:"resolve-timeout"`
	MaxHosts       int           `yaml:"max-hosts"`
	GracePeriod    time.Duration `yaml:"grace"`
	Prioritize     bool          `yaml:"prioritize"`
	PingMode       string        `yaml:"ping-mode"`
	Resolver       string        `yaml:"resolver"`
	ForwardLookup  bool          `yaml:"forward"`
	Output         string        `yaml:"output"`
	JSON           bool          `yaml:"json"`
}

// DefaultOptions returns the built-in defaults overlaid with the environment.
func DefaultOptions() *Options {
	return &Options{
		Concurrency:    envInt(ConcurrencyEnv, sweep.DefaultConcurrency),
		ProbeTimeout:   sweep.DefaultProbeTimeout,
		ResolveTimeout: sweep.DefaultResolveTimeout,
		MaxHosts:       envInt(MaxHostsEnv, sweep.DefaultMaxAddresses),
		GracePeriod:    DefaultGracePeriod,
		PingMode:       string(probe.ModeAuto),
		Resolver:       ResolverEnv,
		Output:         OutputEnv,
		Export:         true,
	}
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	defaults := DefaultOptions()
	options := &Options{}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`ipsweep pings every address of a subnet, resolves its reverse DNS and exports a report`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringSliceVarP(&options.Targets, "target", "t", nil, "target networks to sweep in CIDR notation (comma separated)", goflags.CommaSeparatedStringSliceOptions),
		flagSet.BoolVar(&options.Local, "local", false, "sweep the /24 networks of the local interfaces"),
	)

	flagSet.CreateGroup("rate", "Rate-Limit",
		flagSet.IntVarP(&options.Concurrency, "concurrency", "c", defaults.Concurrency, "number of hosts probed in parallel"),
		flagSet.DurationVarP(&options.ProbeTimeout, "probe-timeout", "pt", defaults.ProbeTimeout, "timeout of each ping"),
		flagSet.DurationVarP(&options.ResolveTimeout, "resolve-timeout", "rt", defaults.ResolveTimeout, "timeout of each reverse lookup"),
		flagSet.IntVarP(&options.MaxHosts, "max-hosts", "mh", defaults.MaxHosts, "maximum number of addresses in one sweep"),
		flagSet.DurationVarP(&options.GracePeriod, "grace", "g", defaults.GracePeriod, "time given to in-flight hosts after interruption"),
		flagSet.BoolVarP(&options.Prioritize, "prioritize", "p", false, "probe likely hosts (gateways, dhcp ranges) first"),
	)

	flagSet.CreateGroup("probe", "Probe",
		flagSet.StringVarP(&options.PingMode, "ping-mode", "pm", defaults.PingMode, "ping implementation (auto,icmp,exec)"),
		flagSet.StringVarP(&options.Resolver, "resolver", "r", defaults.Resolver, "dns server for ptr queries (default: system resolver)"),
		flagSet.BoolVarP(&options.ForwardLookup, "forward", "fc", false, "resolve the addresses of each found hostname"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.Output, "output", "o", defaults.Output, "report file (default: scan_results_<timestamp>.csv)"),
		flagSet.BoolVar(&options.Export, "export", defaults.Export, "export results to a report file"),
		flagSet.BoolVar(&options.JSON, "json", false, "write the report as json lines"),
	)

	flagSet.CreateGroup("config", "Config",
		flagSet.StringVar(&options.ConfigFile, "config", "", "yaml configuration file"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only results in output"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	options.configureOutput()

	showBanner()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", version.GetVersion())
		os.Exit(0)
	}

	if options.ConfigFile != "" {
		if err := options.loadConfigFrom(options.ConfigFile, defaults); err != nil {
			gologger.Fatal().Msgf("Could not read config %s: %s\n", options.ConfigFile, err)
		}
	}

	if err := options.validate(); err != nil {
		gologger.Fatal().Msgf("Program exiting: %s\n", err)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	// If the user desires verbose output, show verbose output
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
		au = aurora.New(aurora.WithColors(false))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

// loadConfigFrom fills every option still at its default with the value of
// the config file. Command line flags take precedence.
func (options *Options) loadConfigFrom(location string, defaults *Options) error {
	data, err := os.ReadFile(location)
	if err != nil {
		return err
	}
	var config Config
	if err := fileutil.Unmarshal(fileutil.YAML, data, &config); err != nil {
		return err
	}
	options.merge(&config, defaults)
	return nil
}

func (options *Options) merge(config *Config, defaults *Options) {
	if len(options.Targets) == 0 {
		options.Targets = append(options.Targets, config.Targets...)
	}
	if config.Concurrency > 0 && options.Concurrency == defaults.Concurrency {
		options.Concurrency = config.Concurrency
	}
	if config.ProbeTimeout > 0 && options.ProbeTimeout == defaults.ProbeTimeout {
		options.ProbeTimeout = config.ProbeTimeout
	}
	if config.ResolveTimeout > 0 && options.ResolveTimeout == defaults.ResolveTimeout {
		options.ResolveTimeout = config.ResolveTimeout
	}
	if config.MaxHosts > 0 && options.MaxHosts == defaults.MaxHosts {
		options.MaxHosts = config.MaxHosts
	}
	if config.GracePeriod > 0 && options.GracePeriod == defaults.GracePeriod {
		options.GracePeriod = config.GracePeriod
	}
	if config.PingMode != "" && options.PingMode == defaults.PingMode {
		options.PingMode = config.PingMode
	}
	if config.Resolver != "" && options.Resolver == defaults.Resolver {
		options.Resolver = config.Resolver
	}
	if config.Output != "" && options.Output == defaults.Output {
		options.Output = config.Output
	}
	options.Prioritize = options.Prioritize || config.Prioritize
	options.ForwardLookup = options.ForwardLookup || config.ForwardLookup
	options.JSON = options.JSON || config.JSON
}

func (options *Options) validate() error {
	if options.Silent && options.Verbose {
		return errors.New("both verbose and silent mode specified")
	}
	if options.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency %d", options.Concurrency)
	}
	if options.MaxHosts < 1 {
		return fmt.Errorf("invalid max hosts %d", options.MaxHosts)
	}
	if options.ProbeTimeout <= 0 || options.ResolveTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if options.GracePeriod < 0 {
		return errors.New("grace period cannot be negative")
	}
	switch probe.Mode(options.PingMode) {
	case probe.ModeAuto, probe.ModeICMP, probe.ModeExec:
	default:
		return fmt.Errorf("%w: %q", probe.ErrUnknownMode, options.PingMode)
	}
	if options.Local && len(options.Targets) > 0 {
		return errors.New("-local cannot be combined with -target")
	}
	return nil
}

func envInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil && v > 0 {
		return v
	}
	return fallback
}
