package plan

import (
	"github.com/smallbiznis/taskforge/internal/plan/repository"
	"github.com/smallbiznis/taskforge/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
