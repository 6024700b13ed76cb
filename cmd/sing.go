package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/allpedroza/karaoke/internal/clock"
	"github.com/allpedroza/karaoke/internal/config"
	"github.com/allpedroza/karaoke/internal/lane"
	"github.com/allpedroza/karaoke/internal/melody"
	"github.com/allpedroza/karaoke/internal/midiexport"
	"github.com/allpedroza/karaoke/internal/session"
	"github.com/allpedroza/karaoke/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSingCmd(cfg *config.Config) *cobra.Command {
	var exportPath string

	cmd := &cobra.Command{
		Use:   "sing <song-id>",
		Short: "Record a live session against a song's melody lane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSing(cmd.Context(), *cfg, args[0], exportPath)
		},
	}
	cmd.Flags().StringVar(&exportPath, "export-midi", "", "write the sung notes to this MIDI file")
	return cmd
}

func runSing(ctx context.Context, cfg config.Config, songID, exportPath string) error {
	closeLog, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := openProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	sess := session.New(newCapturer(cfg, logger), newDetector(cfg), session.Options{
		FPS:    cfg.FPS,
		Logger: logger,
	})
	logger.Info("starting session",
		"song", songID,
		"backend", cfg.Backend,
		"detector", cfg.Detector,
		"sample_rate", cfg.SampleRate,
		"buffer_size", cfg.BufferSize,
	)

	g, ctx := errgroup.WithContext(ctx)
	if err := sess.Start(ctx, true); err != nil {
		return err
	}

	loader := melody.NewLoader(provider, logger)
	loader.Start(ctx, songID)

	model := ui.NewModel(ui.Config{
		SongID: songID,
		FPS:    cfg.FPS,
		Engine: lane.NewEngine(cfg.LaneOptions()),
		Clock:  clock.NewPlayback(),
		Source: sess,
		Melody: loader,
		Done:   sess.Done,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	g.Go(func() error {
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			// context cancelled; the other goroutine carries the cause
			return nil
		}
		if err != nil {
			return fmt.Errorf("run ui: %w", err)
		}
		// leaving the UI ends the recording
		return errQuit
	})
	g.Go(func() error {
		return sess.Wait()
	})

	runErr := g.Wait()
	stats, stopErr := sess.Stop()
	if errors.Is(runErr, errQuit) {
		runErr = nil
	}
	if runErr == nil {
		runErr = stopErr
	}

	printStats(os.Stdout, sess.ID.String(), stats)

	if exportPath != "" {
		notes := midiexport.Transcribe(sess.Observations(), midiexport.DefaultMinNote)
		if err := midiexport.WriteFile(exportPath, songID, notes); err != nil {
			logger.Warn("midi export failed", "path", exportPath, "err", err)
			fmt.Fprintf(os.Stderr, "MIDI export failed: %v\n", err)
		} else {
			fmt.Printf("Exported %d notes to %s\n", len(notes), exportPath)
		}
	}
	return runErr
}

// errQuit cancels the group when the user leaves the UI.
var errQuit = errors.New("quit")
