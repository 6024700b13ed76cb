package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/allpedroza/karaoke/internal/config"
	"github.com/allpedroza/karaoke/internal/melody"
	"github.com/allpedroza/karaoke/internal/midiexport"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newMelodyCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "melody",
		Short: "Manage reference melodies",
	}
	cmd.AddCommand(
		newMelodyImportCmd(cfg),
		newMelodyListCmd(cfg),
		newMelodyOffsetCmd(cfg),
		newMelodyDeleteCmd(cfg),
		newMelodyExportCmd(cfg),
	)
	return cmd
}

func newMelodyImportCmd(cfg *config.Config) *cobra.Command {
	var (
		title    string
		duration float64
	)
	cmd := &cobra.Command{
		Use:   "import <song-id> <notes.json>",
		Short: "Store an extracted melody in the local database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			notes, err := melody.DecodeNotes(data)
			if err != nil {
				return err
			}
			if duration <= 0 {
				for _, n := range notes {
					duration = max(duration, n.End())
				}
			}

			store, err := melody.OpenStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Save(cmd.Context(), args[0], title, duration, notes); err != nil {
				return fmt.Errorf("save melody: %w", err)
			}
			logger.Info("melody imported", "song", args[0], "notes", len(notes), "duration", duration)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d notes for %s\n", len(notes), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "song title")
	cmd.Flags().Float64Var(&duration, "duration", 0, "song length in seconds (default: end of the last note)")
	return cmd
}

func newMelodyListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored melodies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := melody.OpenStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No melodies stored.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SONG\tTITLE\tNOTES\tOFFSET\tPROCESSED")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%+.1fs\t%s\n",
					r.SongID, r.Title, humanize.Comma(int64(r.TotalNotes)), r.SyncOffset, humanize.Time(r.ProcessedAt))
			}
			return tw.Flush()
		},
	}
}

func newMelodyOffsetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "offset <song-id> <seconds>",
		Short: "Set a song's sync offset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid offset %q: %w", args[1], err)
			}
			provider, err := openProvider(*cfg)
			if err != nil {
				return err
			}
			defer provider.Close()

			if err := provider.SaveSyncOffset(cmd.Context(), args[0], offset); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Offset for %s set to %+.2fs\n", args[0], offset)
			return nil
		},
	}
}

func newMelodyDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <song-id>",
		Short: "Remove a stored melody",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := melody.OpenStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%s: %w", args[0], melody.ErrNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newMelodyExportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "export <song-id> <out.mid>",
		Short: "Write a reference melody as a MIDI file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := openProvider(*cfg)
			if err != nil {
				return err
			}
			defer provider.Close()

			ref, err := provider.Melody(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ref.Ready() {
				return fmt.Errorf("%s: melody is %s", args[0], ref.Status)
			}
			title := ref.Title
			if title == "" {
				title = ref.SongID
			}
			if err := midiexport.WriteFile(args[1], title, ref.Notes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d notes to %s\n", len(ref.Notes), args[1])
			return nil
		},
	}
}
