package holiday

import (
	"github.com/smallbiznis/taskforge/internal/holiday/service"
	"go.uber.org/fx"
)

var Module = fx.Module("holiday.service",
	fx.Provide(service.NewService),
)
