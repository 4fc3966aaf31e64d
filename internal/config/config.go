// Package config loads sweepd node settings from flags, SWEEPD_* environment
// variables, an optional .env file and <home>/config/app.toml, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const EnvPrefix = "SWEEPD"

// Keys shared by flags, env vars and app.toml.
const (
	KeyHome          = "home"
	KeyABCIAddr      = "abci.addr"
	KeyABCITransport = "abci.transport"
	KeyRESTAddr      = "rest.addr"
	KeyLogLevel      = "log.level"
	KeyLogJSON       = "log.json"
	KeyDBBackend     = "db.backend"
)

type Config struct {
	Home string `mapstructure:"home"`
	ABCI ABCI   `mapstructure:"abci"`
	REST REST   `mapstructure:"rest"`
	Log  Log    `mapstructure:"log"`
	DB   DB     `mapstructure:"db"`
}

type ABCI struct {
	Addr      string `mapstructure:"addr"`
	Transport string `mapstructure:"transport"` // socket|grpc
}

type REST struct {
	Addr string `mapstructure:"addr"` // empty disables the gateway
}

type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type DB struct {
	Backend string `mapstructure:"backend"`
}

func DefaultConfig() Config {
	return Config{
		Home: ".sweepd",
		ABCI: ABCI{Addr: "tcp://127.0.0.1:26658", Transport: "socket"},
		REST: REST{Addr: "127.0.0.1:8080"},
		Log:  Log{Level: "info"},
		DB:   DB{Backend: string(dbm.GoLevelDBBackend)},
	}
}

// NewViper returns a viper instance with defaults and env binding set up.
func NewViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault(KeyHome, d.Home)
	v.SetDefault(KeyABCIAddr, d.ABCI.Addr)
	v.SetDefault(KeyABCITransport, d.ABCI.Transport)
	v.SetDefault(KeyRESTAddr, d.REST.Addr)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogJSON, d.Log.JSON)
	v.SetDefault(KeyDBBackend, d.DB.Backend)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads the first .env file found in paths. Variables already set
// in the environment win.
func LoadDotEnv(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("load %s: %w", p, err)
		}
	}
	return "", nil
}

// Load resolves the node config. Flags must already be bound to v.
func Load(v *viper.Viper) (Config, error) {
	home := v.GetString(KeyHome)
	path := filepath.Join(home, "config", "app.toml")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("%s must not be empty", KeyHome)
	}
	if c.ABCI.Addr == "" {
		return fmt.Errorf("%s must not be empty", KeyABCIAddr)
	}
	switch c.ABCI.Transport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("%s must be socket or grpc, got %q", KeyABCITransport, c.ABCI.Transport)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	switch dbm.BackendType(c.DB.Backend) {
	case dbm.GoLevelDBBackend, dbm.MemDBBackend:
	default:
		return fmt.Errorf("%s must be goleveldb or memdb, got %q", KeyDBBackend, c.DB.Backend)
	}
	return nil
}

func (c Config) NewLogger(w io.Writer) (log.Logger, error) {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := []log.Option{log.LevelOption(lvl)}
	if c.Log.JSON {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(w, opts...), nil
}
