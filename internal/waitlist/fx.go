package waitlist

import (
	"github.com/pagescope/pagescope/internal/waitlist/repository"
	"github.com/pagescope/pagescope/internal/waitlist/service"
	"go.uber.org/fx"
)

var Module = fx.Module("waitlist",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
