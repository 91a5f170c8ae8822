package bootstrap

import (
	"cartsync/pkg/logging"
)

// InitLogger builds the zap logger described by cfg and installs it as the
// global logger
func InitLogger(cfg *Config) (*logging.ZapLogger, error) {
	var opts []logging.Option
	if cfg.System.LogFormat == "json" {
		opts = append(opts, logging.WithJSON())
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel, opts...)
	if err != nil {
		return nil, err
	}

	logging.SetGlobalLogger(logger)
	return logger, nil
}
