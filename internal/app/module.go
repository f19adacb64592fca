package app

import (
	"time"

	"github.com/fatflowers/subtrack/internal/app/api/server"
	"github.com/fatflowers/subtrack/internal/app/service/canonical"
	"github.com/fatflowers/subtrack/internal/app/service/record"
	"github.com/fatflowers/subtrack/internal/platform/cache"
	"github.com/fatflowers/subtrack/internal/platform/db"
	"github.com/fatflowers/subtrack/pkg/config"
	"github.com/fatflowers/subtrack/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	cache.Module,
	server.Module,
	canonical.Module,
	record.Module,
)
