package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ytget/soft-downloader/internal/logging"
)

func normalizeConfig(cfg *Config) {
	cfg.Backend.Kind = strings.ToLower(strings.TrimSpace(cfg.Backend.Kind))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Catalog.URL = strings.TrimSpace(cfg.Catalog.URL)
	cfg.Metrics.Addr = strings.TrimSpace(cfg.Metrics.Addr)
}

func validateConfig(cfg *Config) error {
	var errs []error

	if cfg.Catalog.URL == "" {
		errs = append(errs, fmt.Errorf("catalog.url must be set"))
	} else if u, err := url.Parse(cfg.Catalog.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("catalog.url %q is not an absolute URL", cfg.Catalog.URL))
	}
	if cfg.Catalog.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("catalog.timeout must be positive, got %s", cfg.Catalog.Timeout))
	}
	if cfg.Catalog.Concurrency < 1 || cfg.Catalog.Concurrency > 32 {
		errs = append(errs, fmt.Errorf("catalog.concurrency must be between 1 and 32, got %d", cfg.Catalog.Concurrency))
	}

	switch cfg.Backend.Kind {
	case BackendProcess:
		if strings.TrimSpace(cfg.Backend.Command) == "" {
			errs = append(errs, fmt.Errorf("backend.command must be set for the process backend"))
		}
	case BackendAMQP:
		if cfg.AMQP.URL == "" {
			errs = append(errs, fmt.Errorf("amqp.url must be set for the amqp backend"))
		}
	case BackendLoopback:
	default:
		errs = append(errs, fmt.Errorf("backend.kind must be one of process, amqp, loopback, got %q", cfg.Backend.Kind))
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if cfg.Logging.Format != "console" && cfg.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}
