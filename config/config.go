// Package config loads the settings of the fetch command from files and the environment.
package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"browser-http/application/http/actor/client"
	"browser-http/application/http/actor/client/metrics"
	"browser-http/application/util/rule"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "BROWSER_HTTP_"

var ErrUnsupportedFormat = errors.New("unsupported config format")

type Config struct {
	Client  ClientConfig  `toml:"client" yaml:"client"`
	Log     LogConfig     `toml:"log" yaml:"log"`
	Request RequestConfig `toml:"request" yaml:"request"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
}

type ClientConfig struct {
	WithCredentials       bool `toml:"with_credentials" yaml:"with_credentials"`
	CanonicalReasonPhrase bool `toml:"canonical_reason_phrase" yaml:"canonical_reason_phrase"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`   // debug | info | warn | error
	Format string `toml:"format" yaml:"format"` // text | json
}

type RequestConfig struct {
	// Timeout of zero means no deadline.
	Timeout Duration          `toml:"timeout" yaml:"timeout"`
	Headers map[string]string `toml:"headers" yaml:"headers"`
	// MaxBody limits the request body read from a file.
	MaxBody SizeBytes `toml:"max_body" yaml:"max_body"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Request: RequestConfig{
			MaxBody: 10 * humanize.MiByte,
		},
	}
}

// Load reads the file at path on top of the defaults.
// The format is picked by extension: .toml, .yaml or .yml.
func Load(path string) (Config, error) {
	cfg := Default()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "decoding toml config %s", path)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "reading config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "decoding yaml config %s", path)
		}
	default:
		return Config{}, errors.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped, variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "loading %s", path)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with BROWSER_HTTP_* variables found through lookup.
// Pass os.LookupEnv for the process environment.
func (cfg *Config) ApplyEnv(lookup func(key string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	boolVars := []struct {
		name string
		dst  *bool
	}{
		{"WITH_CREDENTIALS", &cfg.Client.WithCredentials},
		{"CANONICAL_REASON_PHRASE", &cfg.Client.CanonicalReasonPhrase},
		{"METRICS", &cfg.Metrics.Enabled},
	}
	for _, bv := range boolVars {
		raw, ok := get(bv.name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return errors.Wrapf(err, "parsing %s%s", EnvPrefix, bv.name)
		}
		*bv.dst = b
	}

	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}

	if v, ok := get("TIMEOUT"); ok {
		if err := cfg.Request.Timeout.UnmarshalText([]byte(v)); err != nil {
			return errors.Wrapf(err, "parsing %sTIMEOUT", EnvPrefix)
		}
	}
	if v, ok := get("MAX_BODY"); ok {
		if err := cfg.Request.MaxBody.UnmarshalText([]byte(v)); err != nil {
			return errors.Wrapf(err, "parsing %sMAX_BODY", EnvPrefix)
		}
	}

	return nil
}

func (cfg Config) Validate() error {
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return err
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("log format %q is not supported. supported formats are: text, json", cfg.Log.Format)
	}

	if cfg.Request.Timeout < 0 {
		return errors.New("request timeout must not be negative")
	}
	if cfg.Request.MaxBody < 0 {
		return errors.New("request max body must not be negative")
	}

	for name, value := range cfg.Request.Headers {
		if !rule.IsValidToken(name) {
			return errors.Errorf("header name %q is not a valid token", name)
		}
		if !rule.IsValidFieldValue(value) {
			return errors.Errorf("header %q has an invalid value", name)
		}
	}

	return nil
}

// ClientOptions maps the config onto the client. m may be nil.
func (cfg Config) ClientOptions(m *metrics.Collector) client.Options {
	return client.Options{
		WithCredentials: cfg.Client.WithCredentials,
		Receive: client.ReceiveOptions{
			CanonicalReasonPhrase: cfg.Client.CanonicalReasonPhrase,
		},
		Metrics: m,
	}
}

func (cfg Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrapf(err, "log level %q", s)
	}
	return level, nil
}

// Duration parses from strings like "1.5s", bare numbers are seconds.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = 0
		return nil
	}
	if v, err := time.ParseDuration(raw); err == nil {
		*d = Duration(v)
		return nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return errors.Errorf("invalid duration value: %q", raw)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// SizeBytes parses from strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	return errors.Errorf("invalid size value: %q", raw)
}

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	return s.UnmarshalText([]byte(node.Value))
}

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }
