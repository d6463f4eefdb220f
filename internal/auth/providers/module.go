package providers

import (
	"context"

	"github.com/brizzai/labportal/internal/config"
	"go.uber.org/fx"
)

// Module provides the identity provider selected by configuration
var Module = fx.Module("providers",
	fx.Provide(
		func(cfg *config.ProviderConfig) (Provider, error) {
			return New(context.Background(), cfg)
		},
	),
)
