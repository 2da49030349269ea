package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultUpstreamURL = "https://api.unitystation.org/serverlist"

type Config struct {
	UpstreamURL     string        `yaml:"upstream_url"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	PrometheusAddr  string        `yaml:"prometheus_addr"`
	MetricsPath     string        `yaml:"metrics_path"`
	RefreshOnScrape bool          `yaml:"refresh_on_scrape"`
	RuntimeMetrics  bool          `yaml:"runtime_metrics"`
	APIAddr         string        `yaml:"api_addr"`
	LogLevel        string        `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		UpstreamURL:    DefaultUpstreamURL,
		PollInterval:   5 * time.Second,
		FetchTimeout:   10 * time.Second,
		MaxBodyBytes:   4 << 20,
		PrometheusAddr: ":7776",
		MetricsPath:    "/metrics",
		LogLevel:       "info",
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// OverridePort replaces the port of PrometheusAddr, keeping its host.
func (c *Config) OverridePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}

	host := ""
	if h, _, err := net.SplitHostPort(c.PrometheusAddr); err == nil {
		host = h
	}
	c.PrometheusAddr = net.JoinHostPort(host, strconv.Itoa(p))
	return nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || c.UpstreamURL == "" {
		return fmt.Errorf("invalid upstream_url %q", c.UpstreamURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream_url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream_url %q has no host", c.UpstreamURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.PrometheusAddr == "" {
		return fmt.Errorf("prometheus_addr must not be empty")
	}
	if !strings.HasPrefix(c.MetricsPath, "/") || c.MetricsPath == "/healthz" {
		return fmt.Errorf("invalid metrics_path %q", c.MetricsPath)
	}
	return nil
}
