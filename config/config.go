// Package config loads the configuration from a file, the environment and
// command line flags bound to the same keys.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/imagespy/inspect/version"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configName = "inspect"
	envPrefix  = "INSPECT"
)

type Config struct {
	Log      Log      `mapstructure:"log"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Registry Registry `mapstructure:"registry"`
}

type Log struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type Metrics struct {
	Pushgateway string `mapstructure:"pushgateway"`
}

type Registry struct {
	AuthURL       string        `mapstructure:"authURL"`
	DefaultHost   string        `mapstructure:"defaultHost"`
	DefaultScheme string        `mapstructure:"defaultScheme"`
	Insecure      bool          `mapstructure:"insecure"`
	Service       string        `mapstructure:"service"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"userAgent"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "warn")
	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("registry.authURL", "https://auth.docker.io/token")
	v.SetDefault("registry.defaultHost", "registry-1.docker.io")
	v.SetDefault("registry.defaultScheme", "https")
	v.SetDefault("registry.insecure", false)
	v.SetDefault("registry.service", "registry.docker.io")
	v.SetDefault("registry.timeout", time.Duration(0))
	v.SetDefault("registry.userAgent", "imagespy-inspect/"+version.Version)
}

// Load reads the configuration into v and decodes it. path is either a
// config file or a directory that is searched for inspect.yaml or
// inspect.json. If path is empty the working directory is searched. A
// missing file is only an error if path names a file.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case path == "":
		v.AddConfigPath(".")
		v.SetConfigName(configName)
	case filepath.Ext(path) != "":
		v.SetConfigFile(path)
	default:
		v.AddConfigPath(path)
		v.SetConfigName(configName)
	}

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, errors.Wrap(err, "reading config file")
		}
	}

	c := Config{}
	err = v.Unmarshal(&c)
	if err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}

	return c, nil
}
