package consent

import (
	"github.com/pagescope/pagescope/internal/consent/repository"
	"github.com/pagescope/pagescope/internal/consent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("consent",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
