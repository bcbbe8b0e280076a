package referral

import (
	"github.com/pagescope/pagescope/internal/referral/repository"
	"github.com/pagescope/pagescope/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.ProvideCodeRepository),
	fx.Provide(repository.ProvideConversionRepository),
	fx.Provide(service.New),
)
