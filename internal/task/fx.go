package task

import (
	"github.com/smallbiznis/taskforge/internal/task/repository"
	"github.com/smallbiznis/taskforge/internal/task/service"
	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
