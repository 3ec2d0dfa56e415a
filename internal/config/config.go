package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default configuration values (production)
const (
	DefaultAddr         = "clickertrain.ing"
	DefaultPort         = 443
	DefaultListenScheme = "wss"
	DefaultClickScheme  = "https"
	DefaultVolume       = 1.0
	DefaultSoundsDir    = "~/.config/clickrtraining/sounds/"
	DefaultConfigFile   = "~/.config/clickrtraining/config.yaml"
	DefaultCodec        = "json"
	DefaultEnvFile      = ".env"
	DefaultClickTimeout = 10 * time.Second
	DefaultMinBackoff   = 500 * time.Millisecond
	DefaultMaxBackoff   = 30 * time.Second
	EnvPrefix           = "CLICKR"

	maxVolume       = 2.0
	minPort         = 1
	maxPort         = 65535
	listenerSchemes = "ws|wss"
	clickSchemes    = "http|https"
)

// Flag names. They double as viper keys, config file keys and, upper-cased
// with an CLICKR_ prefix, environment variable names.
const (
	FlagConfig     = "config"
	FlagVerbose    = "verbose"
	FlagAddr       = "addr"
	FlagPort       = "port"
	FlagProtocol   = "protocol"
	FlagID         = "id"
	FlagVolume     = "volume"
	FlagSoundsDir  = "sounds-directory"
	FlagSound      = "sound"
	FlagCodec      = "codec"
	FlagTLSCert    = "tls-cert"
	FlagTLSKey     = "tls-key"
	FlagPingPeriod = "ping-period"
	FlagPongWait   = "pong-wait"
	FlagQueueSize  = "queue-size"
	FlagMinBackoff = "min-backoff"
	FlagMaxBackoff = "max-backoff"
	FlagTimeout    = "timeout"
)

var ErrInvalid = errors.New("invalid configuration")

// New builds a viper instance with the following priority:
// 1. CLI flags that were set explicitly - highest priority
// 2. Environment variables (CLICKR_*, optionally from a .env file)
// 3. The YAML config file (--config, or the default path if it exists)
// 4. Flag defaults - lowest priority
func New(flags *pflag.FlagSet) (*viper.Viper, error) {
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DefaultEnvFile, err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	path := v.GetString(FlagConfig)
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	path, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func oneOf(value, choices string) bool {
	for _, c := range strings.Split(choices, "|") {
		if value == c {
			return true
		}
	}
	return false
}
