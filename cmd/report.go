package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/allpedroza/karaoke/internal/session"
	"github.com/dustin/go-humanize"
)

func printStats(w io.Writer, id string, s session.Stats) {
	fmt.Fprintf(w, "Session %s\n", id)
	fmt.Fprintf(w, "  Samples:    %s total, %s valid\n",
		humanize.Comma(int64(s.TotalSamples)), humanize.Comma(int64(s.ValidSamples)))
	if s.ValidSamples == 0 {
		fmt.Fprintln(w, "  No pitched singing detected.")
		return
	}
	fmt.Fprintf(w, "  Average:    %s Hz\n", humanize.FormatFloat("#,###.#", s.AverageFrequency))
	fmt.Fprintf(w, "  Stability:  %.1f%%\n", s.Stability)
	fmt.Fprintf(w, "  Accuracy:   %.1f%%\n", s.Accuracy)
	fmt.Fprintf(w, "  Notes:      %s\n", strings.Join(s.DistinctNotes, " "))
	chorus := "no"
	if s.ChorusDetected {
		chorus = "yes"
	}
	fmt.Fprintf(w, "  Chorus:     %s (%s loud moments)\n", chorus, humanize.Comma(int64(s.PeakVolumeMoments)))
}
