package decompose

import (
	"github.com/smallbiznis/taskforge/internal/decompose/service"
	"go.uber.org/fx"
)

var Module = fx.Module("decompose.service",
	fx.Provide(service.NewService),
)
