package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clickrtraining/clickrtraining/internal/config"
	"github.com/clickrtraining/clickrtraining/internal/logging"
	"github.com/clickrtraining/clickrtraining/internal/ui"
	"github.com/clickrtraining/clickrtraining/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "clickrtraining",
	Short: "Remote clicker for training: one click, every speaker in the room",
	Long: `clickrtraining relays clicker cues to listeners over the network.

Run a host somewhere reachable, start a listener on each machine that should
make noise, and send clicks to a room from anywhere:

  clickrtraining host --port 8080
  clickrtraining listen --id kitchen
  clickrtraining click --id kitchen --sound bell`,
	Version: version.Version,
}

func init() {
	config.GlobalFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(hostCmd, listenCmd, clickCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			ui.PrintError(err.Error())
		}
		stop()
		os.Exit(1)
	}
}

// reportedError wraps a failure the command has already shown to the user.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// setup resolves configuration for cmd and installs the process logger.
func setup(cmd *cobra.Command, defaultLevel slog.Level) (*viper.Viper, *slog.Logger, error) {
	v, err := config.New(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Init(v.GetBool(config.FlagVerbose), defaultLevel)
	return v, logger, nil
}
