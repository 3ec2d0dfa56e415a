package cmd

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/clickrtraining/clickrtraining/internal/config"
	"github.com/clickrtraining/clickrtraining/internal/dns"
	"github.com/clickrtraining/clickrtraining/internal/playback"
	"github.com/clickrtraining/clickrtraining/internal/protocol"
	"github.com/clickrtraining/clickrtraining/internal/signaling"
	"github.com/clickrtraining/clickrtraining/internal/ui"
)

var listenCmd = &cobra.Command{
	Use:     "listen",
	Aliases: []string{"l"},
	Short:   "Play every click sent to a room",
	Long: `Attach to a room on the host and play each click as it arrives.

Custom sounds are looked up in the sounds directory as <name>.ogg, .wav or .mp3.

Examples:
  clickrtraining listen --id kitchen
  clickrtraining listen -i kitchen --volume 0.5 -s ~/sounds`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	config.ListenFlags(listenCmd.Flags())
}

func runListen(cmd *cobra.Command, _ []string) error {
	v, logger, err := setup(cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	cfg, err := config.LoadListen(v)
	if err != nil {
		return err
	}

	library, err := playback.OpenLibrary(cfg.SoundsDir, logger)
	if err != nil {
		return err
	}
	defer library.Close()
	if names := library.Names(); len(names) > 0 {
		ui.PrintInfof("%s %d custom sounds in %s", ui.IconSound, len(names), cfg.SoundsDir)
	}

	player, ok := playback.DetectPlayer()
	if !ok {
		ui.PrintWarningf("No audio player found on %s, clicks will be shown but not heard", runtime.GOOS)
	}

	scheduler := playback.NewScheduler(library, player, playback.DefaultQueueSize, logger)
	handler := signaling.NewHandler(scheduler, cfg.Volume, logger)
	handler.OnClick(func(ev *protocol.ClickEvent) {
		ui.PrintClick(ev.Sound.String(), time.Now())
	})

	spinner := ui.NewConnectionSpinner(fmt.Sprintf("Connecting to room %s...", ui.Room(cfg.Room.String())))
	spinner.Start()
	defer spinner.Stop()

	client := signaling.NewClient(signaling.Options{
		URL:        cfg.URL(),
		MinBackoff: cfg.MinBackoff,
		MaxBackoff: cfg.MaxBackoff,
		Dial:       dns.NewResolver().DialContext,
		Logger:     logger,
		OnState: func(state signaling.State, err error) {
			spinner.Stop()
			printState(state, cfg.Room, err)
		},
	}, handler)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return client.Run(ctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	stats := scheduler.Stats()
	logger.Info("Listener stopped",
		"clicks", handler.Clicks(),
		"played", stats.Played,
		"coalesced", stats.Coalesced,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
	)
	return nil
}

func printState(state signaling.State, room protocol.RoomID, err error) {
	switch state {
	case signaling.StateStreaming:
		ui.PrintStatus(ui.ToneGood, state.String(), ui.IconRoom+" "+ui.Room(room.String()))
	case signaling.StateRetrying:
		if err != nil {
			ui.PrintStatus(ui.ToneBad, state.String(), err.Error())
			return
		}
		ui.PrintStatus(ui.ToneWarn, state.String(), "")
	case signaling.StateClosed:
		ui.PrintStatus(ui.ToneInfo, state.String(), "")
	}
}
