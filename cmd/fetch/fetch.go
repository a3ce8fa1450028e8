package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	httplib "browser-http/application/http"
	"browser-http/application/http/actor/client"
	"browser-http/application/http/actor/client/metrics"
	"browser-http/application/http/cancel"
	"browser-http/application/http/semantic"
	"browser-http/config"
	"browser-http/transport/nethttp"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

type fetchOptions struct {
	method          string
	headers         []string
	data            string
	configPath      string
	timeout         time.Duration
	withCredentials bool
	include         bool
	fail            bool
	metrics         bool
}

func newFetchCmd(stdout, stderr io.Writer, httpClient *http.Client) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch [flags] URL",
		Short: "Send one HTTP request and print the response body",
		Long: `fetch sends one HTTP request through the same client used in the browser build
and prints the response body to stdout.

Settings are read from --config (.toml or .yaml), then BROWSER_HTTP_* variables
(a .env file in the working directory is honored), then flags.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return fetch(cmd.Context(), cfg, opts, args[0], stdout, stderr, httpClient)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.StringVarP(&opts.method, "request", "X", "", "request method (default GET, POST with --data)")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, `request header "Name: value", repeatable`)
	flags.StringVarP(&opts.data, "data", "d", "", "request body, @path reads it from a file")
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file path (.toml, .yaml)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "cancel the request after this long (0 means no deadline)")
	flags.BoolVar(&opts.withCredentials, "with-credentials", false, "send credentials on cross-origin requests")
	flags.BoolVarP(&opts.include, "include", "i", false, "print the status line and headers")
	flags.BoolVarP(&opts.fail, "fail", "f", false, "fail without printing the body on 4xx and 5xx responses")
	flags.BoolVar(&opts.metrics, "metrics", false, "print client metrics to stderr")

	return cmd
}

func loadConfig(cmd *cobra.Command, opts fetchOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, errors.Wrap(err, "applying environment")
	}

	if cmd.Flags().Changed("timeout") {
		cfg.Request.Timeout = config.Duration(opts.timeout)
	}
	if cmd.Flags().Changed("with-credentials") {
		cfg.Client.WithCredentials = opts.withCredentials
	}
	if opts.metrics {
		cfg.Metrics.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func fetch(
	ctx context.Context,
	cfg config.Config,
	opts fetchOptions,
	rawURL string,
	stdout, stderr io.Writer,
	httpClient *http.Client,
) error {
	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return err
	}

	var (
		registry  *prometheus.Registry
		collector *metrics.Collector
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		collector = metrics.New(registry)
	}

	clk := clock.New()
	c := client.New(nethttp.NewFactory(httpClient), logger, clk, cfg.ClientOptions(collector))
	defer c.Close()

	req, err := buildRequest(cfg, opts, rawURL)
	if err != nil {
		return err
	}

	req.Token = cancel.New()
	if timeout := cfg.Request.Timeout.Std(); timeout > 0 {
		stop := cancel.CancelAfter(clk, timeout, req.Token)
		defer stop()
	}

	start := clk.Now()
	res, err := c.Send(ctx, req)
	if err != nil {
		if client.IsCancelled(err) && ctx.Err() == nil && cfg.Request.Timeout > 0 {
			return errors.Wrapf(err, "timed out after %s", cfg.Request.Timeout.Std())
		}
		return err
	}
	defer res.Body.Close()

	if opts.fail && res.Status.Class() >= 4 {
		return errors.Errorf("server responded %s", res.Status)
	}

	w := bufio.NewWriter(stdout)
	if opts.include {
		writeHead(w, res)
	}
	if _, err := io.Copy(w, res.Body); err != nil {
		return errors.Wrap(err, "writing body")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "writing body")
	}

	logger.Info("fetched",
		slog.String("status", res.Status.String()),
		slog.String("size", humanize.Bytes(uint64(res.ContentLength))),
		slog.Duration("elapsed", clk.Since(start)),
	)

	if registry != nil {
		if err := writeMetrics(stderr, registry); err != nil {
			return err
		}
	}

	return nil
}

func buildRequest(cfg config.Config, opts fetchOptions, rawURL string) (*semantic.Request, error) {
	body, err := readBody(opts.data, int64(cfg.Request.MaxBody))
	if err != nil {
		return nil, err
	}

	method := semantic.Method(strings.ToUpper(opts.method))
	if method == "" {
		method = semantic.MethodGet
		if body != nil {
			method = semantic.MethodPost
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := semantic.NewRequest(method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	if !req.URL.IsAbs() {
		return nil, errors.Errorf("url %q must be absolute", rawURL)
	}

	names := make([]string, 0, len(cfg.Request.Headers))
	for name := range cfg.Request.Headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		req.Headers.Set(name, cfg.Request.Headers[name])
	}

	for _, raw := range opts.headers {
		field, err := httplib.ParseField(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing header %q", raw)
		}
		req.Headers.Set(field.Name, field.Value)
	}

	return req, nil
}

// readBody returns nil when there is no body.
func readBody(data string, maxBody int64) ([]byte, error) {
	path, ok := strings.CutPrefix(data, "@")
	if !ok {
		if data == "" {
			return nil, nil
		}
		return []byte(data), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening body file")
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxBody+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading body file")
	}
	if int64(len(b)) > maxBody {
		return nil, errors.Errorf("body file exceeds %s", humanize.IBytes(uint64(maxBody)))
	}

	return b, nil
}

func writeHead(w io.Writer, res *semantic.Response) {
	if !res.Version.IsZero() {
		fmt.Fprintf(w, "%s ", res.Version)
	}
	fmt.Fprintf(w, "%s\r\n", res.Status)
	res.Headers.Each(func(name, value string) {
		fmt.Fprintf(w, "%s: %s\r\n", name, value)
	})
	fmt.Fprint(w, "\r\n")
}

func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}

			var value string
			switch {
			case m.GetCounter() != nil:
				value = humanize.Ftoa(m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				value = humanize.Ftoa(m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%s", h.GetSampleCount(), humanize.Ftoa(h.GetSampleSum()))
			default:
				continue
			}

			fmt.Fprintf(w, "%s{%s} %s\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}
