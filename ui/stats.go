package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/offlinekit/internal/cache"
)

// RenderCacheStats renders one line per bounded cache.
func RenderCacheStats(stats []cache.Stats, width int) string {
	if len(stats) == 0 {
		return labelStyle.Render("no caches")
	}

	var b strings.Builder
	for i, s := range stats {
		if i > 0 {
			b.WriteByte('\n')
		}
		line := fmt.Sprintf("%-10s %3d/%-3d  %8s  hit %5.1f%%  evicted %d",
			s.Name,
			s.Size, s.MaxEntries,
			humanize.Bytes(uint64(max(s.Bytes, 0))),
			s.HitRate*100,
			s.Evictions,
		)
		if width > 0 {
			line = truncate.StringWithTail(line, uint(width), ellipsis)
		}
		b.WriteString(line)
	}
	return b.String()
}

// RenderControllerStats renders the lifecycle counters on one line.
func RenderControllerStats(s cache.ControllerStats, now time.Time) string {
	last := "never"
	if !s.LastCleanup.IsZero() {
		last = humanize.RelTime(s.LastCleanup, now, "ago", "from now")
	}
	parts := []string{
		labelStyle.Render("sweeps ") + humanize.Comma(s.CleanupRuns),
		labelStyle.Render("last ") + last,
		labelStyle.Render("removed ") + humanize.Comma(s.Removed+s.Pruned),
		labelStyle.Render("preloaded ") + humanize.Comma(s.HintsInjected),
	}
	if s.Observed > 0 {
		parts = append(parts, labelStyle.Render("from cache ")+
			fmt.Sprintf("%d/%d", s.ResourceHits, s.Observed))
	}
	return strings.Join(parts, "  ")
}
