package cache

import (
	"go.uber.org/fx"

	"github.com/fatflowers/subtrack/internal/app/service/canonical"
)

var Module = fx.Options(
	fx.Provide(
		NewRedisClient,
		func(c *ResolutionCache) canonical.ResolutionCache { return c },
		NewResolutionCache,
	),
	fx.Invoke(registerRedisClose),
)
