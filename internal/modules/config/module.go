package config

import "go.uber.org/fx"

// Module отдаёт уже загруженный *Config; main читает его раньше fx ради stop_timeout.
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
