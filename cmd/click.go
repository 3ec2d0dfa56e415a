package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clickrtraining/clickrtraining/internal/clicker"
	"github.com/clickrtraining/clickrtraining/internal/config"
	"github.com/clickrtraining/clickrtraining/internal/dns"
	"github.com/clickrtraining/clickrtraining/internal/ui"
)

var clickCmd = &cobra.Command{
	Use:     "click",
	Aliases: []string{"c"},
	Short:   "Send one click to a room",
	Long: `Ask the host to play a click, or a custom sound, for every listener in a room.

Examples:
  clickrtraining click --id kitchen
  clickrtraining click -i kitchen --sound bell`,
	Args: cobra.NoArgs,
	RunE: runClick,
}

func init() {
	config.ClickFlags(clickCmd.Flags())
}

func runClick(cmd *cobra.Command, _ []string) error {
	v, logger, err := setup(cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	cfg, err := config.LoadClick(v)
	if err != nil {
		return err
	}

	logger.Debug("Sending click", "url", cfg.URL())
	client := clicker.NewHTTPClient(cfg.Timeout, dns.NewResolver().DialContext)

	sp := ui.NewWaitingSpinner(fmt.Sprintf("Sending %s to room %s...", cfg.Sound, ui.Room(cfg.Room.String())))
	sp.Start()
	ack, err := clicker.Send(cmd.Context(), client, cfg.Endpoint, cfg.Room, cfg.Sound)
	if err != nil {
		sp.Error(err.Error())
		return reportedError{err}
	}

	sp.Success(fmt.Sprintf("%s %s sent to room %s", ui.IconClick, ack.Sound, ui.Room(ack.Room.String())))
	return nil
}
