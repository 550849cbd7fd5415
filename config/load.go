package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// CONSENSUS_MEMPOOL_MIN_FEE overrides mempool.min-fee.
const EnvPrefix = "CONSENSUS"

// Load builds the configuration from, in increasing order of precedence,
// the defaults of DefaultConfig, the config file (if configFile is not
// empty), environment variables and explicitly set flags. The flags must
// have been initialized with InitializeFlags.
// Expected errors:
//   - InvalidConfigError if the resulting configuration fails validation
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	conf := viper.New()
	conf.SetEnvPrefix(EnvPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	conf.AutomaticEnv()

	err := BindFlags(conf, flags)
	if err != nil {
		return nil, err
	}

	if configFile != "" {
		conf.SetConfigFile(configFile)
		if err := conf.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", configFile, err)
		}
	}

	cfg := DefaultConfig()
	err = conf.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("could not decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BindFlags registers every configuration flag on the viper store under its
// configuration key.
// Returns:
// error: if a flag was not initialized on the flag set.
func BindFlags(conf *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("missing configuration flag %s, flags must be initialized with InitializeFlags", name)
		}
		if err := conf.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("could not bind flag %s: %w", name, err)
		}
	}
	return nil
}
