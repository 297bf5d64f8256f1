package config

import "go.uber.org/fx"

// Module provides application and AI configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewAIConfigHolder,
	),
)
