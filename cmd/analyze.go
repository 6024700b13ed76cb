package main

import (
	"fmt"
	"os"
	"time"

	"github.com/allpedroza/karaoke/internal/audio"
	"github.com/allpedroza/karaoke/internal/config"
	"github.com/allpedroza/karaoke/internal/midiexport"
	"github.com/allpedroza/karaoke/internal/session"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	var exportPath string

	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Score a recorded performance offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			capturer, err := audio.OpenWAV(path, cfg.BufferSize, cfg.FPS)
			if err != nil {
				return err
			}
			if info, err := os.Stat(path); err == nil {
				logger.Info("analyzing recording", "path", path, "size", humanize.Bytes(uint64(info.Size())))
			}

			// timestamps follow the replay position, not the wall clock
			origin := time.Now()
			sess := session.New(capturer, newDetector(*cfg), session.Options{
				FPS:    cfg.FPS,
				Logger: logger,
				Now: func() time.Time {
					return origin.Add(time.Duration(capturer.Position() * float64(time.Second)))
				},
			})
			if err := sess.Start(cmd.Context(), false); err != nil {
				return err
			}
			stats, err := sess.Drain(cmd.Context())
			if err != nil {
				return err
			}

			printStats(cmd.OutOrStdout(), sess.ID.String(), stats)

			if exportPath != "" {
				notes := midiexport.Transcribe(sess.Observations(), midiexport.DefaultMinNote)
				if err := midiexport.WriteFile(exportPath, path, notes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d notes to %s\n", len(notes), exportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exportPath, "export-midi", "", "write the sung notes to this MIDI file")
	return cmd
}
