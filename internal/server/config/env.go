package config

import "github.com/kelseyhightower/envconfig"

// parseEnv overlays PROPOSALKEEPER_* variables. Unset variables leave the
// current value alone.
func parseEnv(config *Config) {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		panic(err)
	}
}

// FromEnv returns the defaults overlaid with the environment only, ignoring
// config files and os.Args. The admin tooling parses its own flags.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
