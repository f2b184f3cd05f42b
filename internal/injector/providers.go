package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/core/observability/metrics"
	"github.com/zeusync/coedit/internal/relay"
	"github.com/zeusync/coedit/internal/server"
)

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	metrics.New,
	ProvideRelay,
	server.NewServer,
)

func ProvideLogger(cfg server.Config) (*log.Logger, func()) {
	logger := log.New(cfg.LogLevel)
	return logger, func() { _ = logger.Sync() }
}

func ProvideRelay(logger log.Log, m *metrics.Metrics, cfg server.Config) (*relay.Relay, func()) {
	r := relay.New(logger, m, cfg.Relay)
	return r, func() { _ = r.Close() }
}
