// Package config resolves serverdata settings from flags, the environment,
// .env files and an optional .serverdata.yaml, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nakajima/serverdata/internal/dialect"
	"github.com/nakajima/serverdata/internal/store"
)

// EnvPrefix prefixes every environment variable, e.g. SERVERDATA_DSN.
const EnvPrefix = "SERVERDATA"

// Keys understood in the config file, the environment and flags.
const (
	KeyDriver    = "driver"
	KeyDSN       = "dsn"
	KeyName      = "name"
	KeyInBinding = "in_binding"
	KeyReturning = "returning"
	KeySpecsDir  = "specs_dir"
	KeyDialect   = "dialect"
	KeyLogLevel  = "log_level"
)

// Config holds the resolved settings.
type Config struct {
	Driver    string
	DSN       string
	Name      string
	InBinding string
	Returning bool
	SpecsDir  string

	// Dialect renders statements that are printed rather than executed.
	// Empty means the dialect of Driver.
	Dialect  string
	LogLevel string
}

// Options control where Load looks.
type Options struct {
	// Fs is the filesystem config and .env files are read from.
	// Nil means the OS filesystem.
	Fs afero.Fs

	// Dir is the directory searched for .serverdata.yaml and .env files.
	// Empty means the current directory.
	Dir string

	// ConfigFile names an explicit config file, which must exist.
	ConfigFile string

	// Flags are bound over every other source when set. Flag names use
	// dashes: --in-binding binds in_binding.
	Flags *pflag.FlagSet
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	v := viper.New()
	v.SetFs(fs)

	v.SetDefault(KeyDriver, "sqlite3")
	v.SetDefault(KeyDSN, "serverdata.db")
	v.SetDefault(KeyReturning, true)
	v.SetDefault(KeySpecsDir, "specs")
	v.SetDefault(KeyLogLevel, "info")

	if err := readConfigFile(v, opts.ConfigFile, dir); err != nil {
		return nil, err
	}

	dotenv, err := readDotenv(fs, dir)
	if err != nil {
		return nil, err
	}
	if len(dotenv) > 0 {
		if err := v.MergeConfigMap(dotenv); err != nil {
			return nil, fmt.Errorf("merge .env: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyDSN, EnvPrefix+"_DSN", "DATABASE_URL"); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Driver:    v.GetString(KeyDriver),
		DSN:       v.GetString(KeyDSN),
		Name:      v.GetString(KeyName),
		InBinding: v.GetString(KeyInBinding),
		Returning: v.GetBool(KeyReturning),
		SpecsDir:  v.GetString(KeySpecsDir),
		Dialect:   v.GetString(KeyDialect),
		LogLevel:  v.GetString(KeyLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, explicit, dir string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", explicit, err)
		}
		return nil
	}

	v.SetConfigName(".serverdata")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "serverdata"))
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// readDotenv reads .env and then .env.local from dir. Only SERVERDATA_
// variables are kept, keyed by their config key.
func readDotenv(fs afero.Fs, dir string) (map[string]any, error) {
	out := map[string]any{}
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			if exists, _ := afero.Exists(fs, path); !exists {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		vars, err := godotenv.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for k, val := range vars {
			if k == "DATABASE_URL" {
				if _, set := out[KeyDSN]; !set {
					out[KeyDSN] = val
				}
				continue
			}
			key, ok := strings.CutPrefix(k, EnvPrefix+"_")
			if !ok {
				continue
			}
			out[strings.ToLower(key)] = val
		}
	}
	return out, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if key == "in" {
			key = KeyInBinding
		}
		switch key {
		case KeyDriver, KeyDSN, KeyName, KeyInBinding, KeyReturning, KeySpecsDir, KeyDialect, KeyLogLevel:
			if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
				err = bindErr
			}
		}
	})
	return err
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if c.InBinding != "" {
		if _, err := dialect.ParseInBinding(c.InBinding); err != nil {
			return fmt.Errorf("%s: %w", KeyInBinding, err)
		}
	}
	if c.Dialect != "" {
		if _, err := dialect.ByName(c.Dialect); err != nil {
			return fmt.Errorf("%s: %w", KeyDialect, err)
		}
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// Store returns the settings for store.Open.
func (c *Config) Store() store.Config {
	return store.Config{
		Driver:      c.Driver,
		DSN:         c.DSN,
		Name:        c.Name,
		InBinding:   c.InBinding,
		NoReturning: !c.Returning,
	}
}

// RenderDialect returns the dialect printed statements use: Dialect when
// set, otherwise the driver's dialect.
func (c *Config) RenderDialect() (dialect.Dialect, error) {
	var opts []dialect.Option
	if c.InBinding != "" {
		b, err := dialect.ParseInBinding(c.InBinding)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dialect.WithInBinding(b))
	}
	opts = append(opts, dialect.WithReturning(c.Returning))

	if c.Dialect != "" {
		return dialect.ByName(c.Dialect, opts...)
	}
	return dialect.ForDriver(c.Driver, opts...)
}
