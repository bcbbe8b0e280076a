package cart

import (
	"github.com/pagescope/pagescope/internal/cart/repository"
	"github.com/pagescope/pagescope/internal/cart/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cart",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
