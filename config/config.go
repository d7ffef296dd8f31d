// Package config loads a provider configuration from YAML and opens units
// of work on it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/hnhuaxi/xdal/provider/memory"
	"github.com/hnhuaxi/xdal/provider/mysql"
	"github.com/hnhuaxi/xdal/provider/postgres"
	"github.com/hnhuaxi/xdal/provider/sqlite"
	"github.com/hnhuaxi/xdal/repository/db"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSqlite   = "sqlite"
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("unknown driver")

type Config struct {
	Driver string `default:"memory" yaml:"driver"`
	// Name of the in-memory database.
	Name    string     `default:"xdal" yaml:"name"`
	DSN     string     `yaml:"dsn"`
	Options db.Options `yaml:"options"`
}

func Parse(data []byte) (*Config, error) {
	return Load(bytes.NewReader(data))
}

func Load(r io.Reader) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}

	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

func (c *Config) Validate() error {
	c.Driver = strings.ToLower(c.Driver)
	switch c.Driver {
	case DriverMemory:
		if c.Name == "" {
			return memory.ErrEmptyName
		}
	case DriverSqlite, DriverMysql, DriverPostgres:
		if c.DSN == "" {
			return fmt.Errorf("%s: empty dsn", c.Driver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
	return nil
}

// Open returns a unit of work on the configured provider. ops apply after
// the configured options.
func (c *Config) Open(build db.ModelBuildFunc, ops ...db.OptionFunc) (*db.UnitOfWork, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ops = append([]db.OptionFunc{db.WithOptions(c.Options)}, ops...)
	switch c.Driver {
	case DriverMemory:
		return memory.New(c.Name, build, ops...)
	case DriverSqlite:
		return sqlite.New(c.DSN, build, ops...)
	case DriverMysql:
		return mysql.New(c.DSN, build, ops...)
	default:
		return postgres.New(c.DSN, build, ops...)
	}
}
