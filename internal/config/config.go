// Package config provides functionality for managing configuration options
// for the client using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultAPIURL is used when neither a flag, a config file nor API_URL is set.
const DefaultAPIURL = "http://localhost:5000/api"

// Options holds the configuration values for the client.
type Options struct {
	// APIURL is the base URL of the marketplace API.
	APIURL string `mapstructure:"api_url"`

	// TokenFile is where the credential is persisted between runs.
	TokenFile string `mapstructure:"token_file"`

	// StorageKey, when set, seals the persisted credential with AES-GCM.
	StorageKey string `mapstructure:"storage_key"`

	// CAFile is an optional PEM bundle trusted for the API's TLS certificate.
	CAFile string `mapstructure:"ca_file"`

	// Timeout bounds every API call.
	Timeout time.Duration `mapstructure:"timeout"`

	// LogLevel is the zap level name.
	LogLevel string `mapstructure:"log_level"`

	// Color is one of auto, always, never.
	Color string `mapstructure:"color"`

	// Config is the path to the JSON config file.
	Config string `mapstructure:"-"`
}

// flag name → viper key
var flagKeys = map[string]string{
	"api-url":     "api_url",
	"token-file":  "token_file",
	"storage-key": "storage_key",
	"ca":          "ca_file",
	"timeout":     "timeout",
	"log-level":   "log_level",
	"color":       "color",
}

// BindFlags registers the client flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("api-url", DefaultAPIURL, "marketplace API base URL")
	fs.String("token-file", defaultTokenFile(), "path to the persisted credential")
	fs.String("storage-key", "", "secret used to seal the persisted credential")
	fs.String("ca", "", "path to a CA bundle for the API's TLS certificate")
	fs.Duration("timeout", 10*time.Second, "timeout for each API call")
	fs.String("log-level", "warn", "log level: debug, info, warn, error")
	fs.String("color", "auto", "color output: auto, always, never")
	fs.StringP("config", "c", "config.json", "path to config file")
}

// Load resolves Options from fs. Precedence, lowest first: flag defaults,
// the JSON config file, environment variables (API_URL, TOKEN_FILE, ...,
// also read from .env), then flags set explicitly on the command line.
func Load(fs *pflag.FlagSet) (*Options, error) {
	// a missing .env is normal
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		v.SetDefault(key, f.DefValue)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfgPath, _ := fs.GetString("config")
	if env := os.Getenv("CONFIG"); env != "" {
		cfgPath = env
	}
	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err == nil {
			v.SetConfigFile(cfgPath)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	opts := &Options{
		APIURL:     v.GetString("api_url"),
		TokenFile:  v.GetString("token_file"),
		StorageKey: v.GetString("storage_key"),
		CAFile:     v.GetString("ca_file"),
		Timeout:    v.GetDuration("timeout"),
		LogLevel:   v.GetString("log_level"),
		Color:      v.GetString("color"),
		Config:     cfgPath,
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks the resolved options.
func (o *Options) Validate() error {
	if o.APIURL == "" {
		o.APIURL = DefaultAPIURL
	}
	o.APIURL = strings.TrimRight(o.APIURL, "/")
	if !strings.HasPrefix(o.APIURL, "http://") && !strings.HasPrefix(o.APIURL, "https://") {
		return fmt.Errorf("api url %q: must start with http:// or https://", o.APIURL)
	}
	if o.TokenFile == "" {
		return errors.New("token file must not be empty")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout %s: must be positive", o.Timeout)
	}
	switch o.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color mode %q: must be auto, always, or never", o.Color)
	}
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credential.json"
	}
	return filepath.Join(home, ".gigbid", "credential.json")
}
