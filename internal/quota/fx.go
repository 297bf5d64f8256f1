package quota

import (
	"github.com/smallbiznis/taskforge/internal/quota/repository"
	"github.com/smallbiznis/taskforge/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
