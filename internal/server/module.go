package server

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/clickrtraining/clickrtraining/internal/config"
	"github.com/clickrtraining/clickrtraining/internal/hub"
)

// Module wires the registry and HTTP server into an fx application. It
// expects a *config.HostConfig and a *slog.Logger to be supplied.
var Module = fx.Module("server",
	fx.Provide(
		NewRegistry,
		New,
	),
	fx.Invoke(register),
)

// NewRegistry builds the room registry from the host configuration.
func NewRegistry(cfg *config.HostConfig, logger *slog.Logger) *hub.Registry {
	return hub.NewRegistry(hub.Options{
		PongWait:   cfg.PongWait,
		PingPeriod: cfg.PingPeriod,
		QueueSize:  cfg.QueueSize,
	}, logger)
}

type register_Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Server     *Server
	Config     *config.HostConfig
	Logger     *slog.Logger
}

func register(params register_Params) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := params.Server.Start(params.Config.ListenAddress(), params.Config.TLSCert, params.Config.TLSKey); err != nil {
				return err
			}
			go func() {
				if err, ok := <-params.Server.Errors(); ok && err != nil {
					params.Logger.Error("Shutting down after server failure", "error", err)
					_ = params.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return params.Server.Shutdown(ctx)
		},
	})
}
