// Package config loads server configuration from CLI flags (§6.4), with
// an optional YAML file layered underneath for options that don't map
// cleanly to a single flag. It is adapted from the teacher's config.New
// (stdlib flag, an env-var fallback comment) generalized to the slide
// server's actual option set (§6.3).
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the reference implementation's ServerCreateInfo (§6.3).
type Config struct {
	Port     int    `yaml:"port"`
	SlideDir string `yaml:"slide_dir"`
	Cert     string `yaml:"cert"`
	Key      string `yaml:"key"`
	DocRoot  string `yaml:"doc_root"`
	CORS     string `yaml:"cors"`
	HTTPS    bool   `yaml:"https"`

	NumWorkers   int `yaml:"num_workers"`
	NumAcceptors int `yaml:"num_acceptors"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Load parses CLI flags (optionally layered over a YAML file named by
// -config) into a Config and validates it.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("irisd", flag.ContinueOnError)

	cfg := &Config{
		Port:         8080,
		HTTPS:        true,
		NumWorkers:   0, // 0 => runtime.NumCPU(), matching core/pools.NewWorkerPool's default
		NumAcceptors: 4,
	}

	configFile := fs.String("config", "", "optional YAML config file, flags override its values")
	fs.IntVar(&cfg.Port, "p", cfg.Port, "HTTP(S) server port")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP(S) server port")
	fs.StringVar(&cfg.SlideDir, "d", cfg.SlideDir, "directory scanned for {id}.iris slide files (required)")
	fs.StringVar(&cfg.SlideDir, "dir", cfg.SlideDir, "directory scanned for {id}.iris slide files (required)")
	fs.StringVar(&cfg.Cert, "c", cfg.Cert, "TLS certificate PEM file")
	fs.StringVar(&cfg.Cert, "cert", cfg.Cert, "TLS certificate PEM file")
	fs.StringVar(&cfg.Key, "k", cfg.Key, "TLS private key PEM file")
	fs.StringVar(&cfg.Key, "key", cfg.Key, "TLS private key PEM file")
	fs.StringVar(&cfg.CORS, "o", cfg.CORS, "explicit Access-Control-Allow-Origin value")
	fs.StringVar(&cfg.CORS, "cors", cfg.CORS, "explicit Access-Control-Allow-Origin value")
	fs.StringVar(&cfg.DocRoot, "r", cfg.DocRoot, "static file server root (enables file dispatch)")
	fs.StringVar(&cfg.DocRoot, "root", cfg.DocRoot, "static file server root (enables file dispatch)")
	httpOnly := fs.Bool("http-only", false, "accept plain HTTP instead of TLS")
	fs.BoolVar(httpOnly, "no-https", false, "alias for --http-only")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "optional address to expose /debug/metrics on (empty disables it)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configFile != "" {
		if err := cfg.loadYAML(*configFile); err != nil {
			return nil, err
		}
		// Re-parse so flags explicitly given on the command line still win
		// over whatever the file set.
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	if *httpOnly {
		cfg.HTTPS = false
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.SlideDir == "" {
		return fmt.Errorf("config: slide_dir is required (-d/--dir)")
	}
	info, err := os.Stat(c.SlideDir)
	if err != nil {
		return fmt.Errorf("config: slide_dir %s: %w", c.SlideDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: slide_dir %s is not a directory", c.SlideDir)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if (c.Cert == "") != (c.Key == "") {
		return fmt.Errorf("config: cert and key must both be set or both be omitted")
	}
	return nil
}
