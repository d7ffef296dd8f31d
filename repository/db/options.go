package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options configures a UnitOfWork. Defaults come from the struct tags and
// are overridden by OptionFuncs.
type Options struct {
	LogLevel           string        `default:"silent" yaml:"log_level"`
	SlowThreshold      time.Duration `default:"200ms" yaml:"slow_threshold"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	DisableAutoMigrate bool          `yaml:"disable_auto_migrate"`

	Logger    *zap.Logger         `yaml:"-"`
	Configure func(*gorm.Config) `yaml:"-"`
}

type OptionFunc func(opts *Options) error

func BuildOptions(ops []OptionFunc) (*Options, error) {
	var opts Options
	if err := defaults.Set(&opts); err != nil {
		return nil, err
	}

	for _, op := range ops {
		if err := op(&opts); err != nil {
			return nil, err
		}
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &opts, nil
}

// WithConfig registers the configuration-override callback applied to the
// gorm config right before the connection is opened.
func WithConfig(configure func(*gorm.Config)) OptionFunc {
	return func(opts *Options) error {
		prev := opts.Configure
		opts.Configure = func(cfg *gorm.Config) {
			if prev != nil {
				prev(cfg)
			}
			configure(cfg)
		}
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(opts *Options) error {
		opts.Logger = logger
		return nil
	}
}

func WithLogLevel(level string) OptionFunc {
	return func(opts *Options) error {
		if _, err := parseLogLevel(level); err != nil {
			return err
		}
		opts.LogLevel = level
		return nil
	}
}

func WithMaxOpenConns(n int) OptionFunc {
	return func(opts *Options) error {
		opts.MaxOpenConns = n
		return nil
	}
}

func WithoutAutoMigrate() OptionFunc {
	return func(opts *Options) error {
		opts.DisableAutoMigrate = true
		return nil
	}
}

// WithOptions merges options loaded from configuration.
func WithOptions(src Options) OptionFunc {
	return func(opts *Options) error {
		if src.LogLevel != "" {
			if _, err := parseLogLevel(src.LogLevel); err != nil {
				return err
			}
			opts.LogLevel = src.LogLevel
		}
		if src.SlowThreshold > 0 {
			opts.SlowThreshold = src.SlowThreshold
		}
		if src.MaxOpenConns > 0 {
			opts.MaxOpenConns = src.MaxOpenConns
		}
		opts.DisableAutoMigrate = opts.DisableAutoMigrate || src.DisableAutoMigrate
		return nil
	}
}

func (opts *Options) gormConfig() (*gorm.Config, error) {
	level, err := parseLogLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}

	cfg := &gorm.Config{
		Logger: gormlogger.New(
			zap.NewStdLog(opts.Logger),
			gormlogger.Config{
				SlowThreshold:             opts.SlowThreshold,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	if opts.Configure != nil {
		opts.Configure(cfg)
	}
	return cfg, nil
}

func parseLogLevel(level string) (gormlogger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "", "silent":
		return gormlogger.Silent, nil
	case "error":
		return gormlogger.Error, nil
	case "warn", "warning":
		return gormlogger.Warn, nil
	case "info", "debug":
		return gormlogger.Info, nil
	default:
		return gormlogger.Silent, fmt.Errorf("invalid log level %q", level)
	}
}
