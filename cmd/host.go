package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/clickrtraining/clickrtraining/internal/config"
	"github.com/clickrtraining/clickrtraining/internal/server"
	"github.com/clickrtraining/clickrtraining/internal/ui"
)

var errHostFailed = errors.New("host stopped after a server failure")

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the click host",
	Long: `Run the host that listeners attach to and clickers send to.

Examples:
  clickrtraining host --port 8080
  clickrtraining host --tls-cert cert.pem --tls-key key.pem`,
	Args: cobra.NoArgs,
	RunE: runHost,
}

func init() {
	config.HostFlags(hostCmd.Flags())
}

// hostOptions assembles the host fx application.
func hostOptions(cfg *config.HostConfig, logger *slog.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, logger),
		fx.WithLogger(func(l *slog.Logger) fxevent.Logger {
			fxLogger := &fxevent.SlogLogger{Logger: l.With("component", "fx")}
			fxLogger.UseLogLevel(slog.LevelDebug)
			return fxLogger
		}),
		server.Module,
	)
}

func runHost(cmd *cobra.Command, _ []string) error {
	v, logger, err := setup(cmd, slog.LevelInfo)
	if err != nil {
		return err
	}
	cfg, err := config.LoadHost(v)
	if err != nil {
		return err
	}

	var srv *server.Server
	app := fx.New(hostOptions(cfg, logger), fx.Populate(&srv))
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	scheme := "http"
	if cfg.TLS() {
		scheme = "https"
	}
	ui.PrintSuccessf("%s Hosting on %s://%s", ui.IconHost, scheme, srv.Addr())

	exitCode := 0
	select {
	case <-cmd.Context().Done():
	case sig := <-app.Wait():
		exitCode = sig.ExitCode
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if exitCode != 0 {
		return errHostFailed
	}
	return nil
}
