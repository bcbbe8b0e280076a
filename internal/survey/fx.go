package survey

import (
	"github.com/pagescope/pagescope/internal/survey/repository"
	"github.com/pagescope/pagescope/internal/survey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("survey",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
