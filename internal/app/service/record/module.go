package record

import "go.uber.org/fx"

// Module exposes the subscription record service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
