package ai

import (
	"github.com/smallbiznis/taskforge/internal/ai/breaker"
	"github.com/smallbiznis/taskforge/internal/ai/openai"
	"go.uber.org/fx"
)

var Module = fx.Module("ai",
	fx.Provide(
		breaker.New,
		openai.NewClient,
	),
)
