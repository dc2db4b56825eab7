package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"tidyfs/internal/config"
	"tidyfs/internal/console"
	"tidyfs/internal/database"
	"tidyfs/internal/exitcodes"
	"tidyfs/internal/fsops"
	"tidyfs/internal/logging"
	"tidyfs/internal/metrics"
	"tidyfs/internal/safety"
)

var errNoWorkDir = errors.New("no directory given and no --config to read work_dir from")

// session is everything one command run needs: the effective configuration,
// the loggers, the optional history database and the console driver.
type session struct {
	cfg     *config.Config
	stdLog  *log.Logger
	logger  *logging.Leveled
	db      *database.HistoryDB
	console *console.Console
	metrics bool
}

// loadConfig resolves the effective configuration. dir, when set, replaces
// work_dir. Flag overrides are validated together with the file.
func (o *options) loadConfig(dir string) (*config.Config, error) {
	cfg := &config.Config{}
	if o.cfgFile != "" {
		loaded, err := config.Load(o.cfgFile)
		if err != nil {
			return nil, withCode(exitcodes.InvalidConfig, fmt.Errorf("load config: %w", err))
		}
		cfg = loaded
	} else if dir == "" {
		return nil, withCode(exitcodes.InvalidConfig, errNoWorkDir)
	}

	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, withCode(exitcodes.InvalidConfig, err)
		}
		cfg.WorkDir = abs
	}
	if o.dryRun {
		cfg.DryRun = true
	}
	if o.specialFiles != "" {
		cfg.SpecialFiles = o.specialFiles
	}
	if o.metricsPort > 0 {
		cfg.Prometheus.Port = o.metricsPort
	}
	if o.dbPath != "" {
		abs, err := filepath.Abs(o.dbPath)
		if err != nil {
			return nil, withCode(exitcodes.InvalidConfig, err)
		}
		cfg.DatabasePath = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, withCode(exitcodes.InvalidConfig, err)
	}
	return cfg, nil
}

// Console logs go to stderr; stdout carries command output.
func (o *options) consoleWriter() io.Writer {
	if o.quiet {
		return io.Discard
	}
	return os.Stderr
}

// openSession wires logging, metrics, history and the safety validator
// around a console for dir.
func (o *options) openSession(dir string) (*session, error) {
	cfg, err := o.loadConfig(dir)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	s.stdLog = logging.NewWithWriter(cfg, o.consoleWriter())
	s.logger = logging.Wrap(s.stdLog)

	if cfg.Prometheus.Port > 0 {
		s.logger.Info("Starting Prometheus metrics", "addr", cfg.PrometheusAddress())
		metrics.StartServer(cfg.PrometheusAddress(), s.stdLog)
		s.metrics = true
	}

	deps := console.Deps{
		FS:             fsops.OS(),
		Files:          afero.NewOsFs(),
		Logger:         s.logger,
		ReapMetrics:    metrics.NewReapCollector(),
		ProcessMetrics: metrics.NewProcessCollector(),
		Validator:      safety.NewValidator(cfg.Safety.AllowedRoots, cfg.Safety.ProtectedPaths),
	}

	if cfg.DatabasePath != "" {
		s.logger.Info("Opening history database", "path", cfg.DatabasePath)
		db, err := database.NewHistoryDB(cfg.DatabasePath)
		if err != nil {
			s.Close()
			return nil, withCode(exitcodes.RuntimeError, fmt.Errorf("open history database: %w", err))
		}
		s.db = db
		deps.History = db
	}

	s.console, err = console.New(cfg, deps)
	if err != nil {
		s.Close()
		return nil, withCode(exitcodes.InvalidConfig, err)
	}
	return s, nil
}

func (s *session) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", "error", err)
		}
		s.db = nil
	}
	if s.metrics {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metrics.Shutdown(ctx, s.stdLog)
		s.metrics = false
	}
}
