package config

import (
	"flag"
	"io"
)

// Flags holds command line overrides. Only flags present on the command
// line are applied, so environment values survive unset flags.
type Flags struct {
	ConfigFile string
	Listen     string
	Forward    string
	Timeout    int
	Verbose    bool

	set map[string]bool
}

// ParseFlags parses the proxy command line.
func ParseFlags(args []string, output io.Writer) (*Flags, error) {
	f := &Flags{set: make(map[string]bool)}

	fs := flag.NewFlagSet("gridproxy", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.StringVar(&f.ConfigFile, "config", "", "Path to a YAML or TOML config file")
	fs.StringVar(&f.Listen, "listen", "", "Address to listen on (HOST:PORT)")
	fs.StringVar(&f.Forward, "forward", "", "Selenium hub address to forward to (HOST:PORT)")
	fs.IntVar(&f.Timeout, "timeout", 0, "Per-attempt upstream timeout in seconds")
	fs.BoolVar(&f.Verbose, "verbose", false, "Enable debug console logging")
	fs.BoolVar(&f.Verbose, "default_logs", false, "Alias for -verbose")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// Apply overlays the flags that were set onto cfg and revalidates it.
func (f *Flags) Apply(cfg *Config) error {
	if f.set["listen"] {
		cfg.Server.Listen = f.Listen
	}
	if f.set["forward"] {
		cfg.Upstream.Forward = f.Forward
	}
	if f.set["timeout"] {
		cfg.Upstream.TimeoutSeconds = f.Timeout
	}
	if f.set["verbose"] || f.set["default_logs"] {
		cfg.Logging.Verbose = f.Verbose
	}
	cfg.normalize()
	return cfg.Validate()
}
