package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/offlinekit/internal/cache"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show cache configuration and usage",
	Args:    cobra.NoArgs,
	Example: paragraph("offlinekit stats"),
	RunE: func(*cobra.Command, []string) error {
		s, err := openSubsystem()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		return printStats(os.Stdout, s)
	},
}

func printStats(w io.Writer, s *subsystem) error {
	used, err := s.store.Size()
	if err != nil {
		return fmt.Errorf("unable to read store size: %w", err)
	}

	fmt.Fprintln(w, keyword("Persistent cache"))
	fmt.Fprintf(w, "  path     %s\n", s.cacheCfg.StorePath)
	fmt.Fprintf(w, "  items    %s\n", humanize.Comma(int64(len(s.caches.Persistent().Keys()))))
	fmt.Fprintf(w, "  used     %s of %s\n", humanize.Bytes(uint64(used)), quota(s.cacheCfg.StoreQuota)) //nolint:gosec
	fmt.Fprintf(w, "  compress %v\n", s.cacheCfg.Compress)

	fmt.Fprintln(w)
	fmt.Fprintln(w, keyword("Bounded caches"))
	for _, st := range s.caches.Stats() {
		fmt.Fprintf(w, "  %-10s %3d entries, ttl %s\n", st.Name, st.MaxEntries, st.TTL)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, keyword("Lifecycle"))
	fmt.Fprintf(w, "  mode     %s\n", mode(s.cacheCfg))
	fmt.Fprintf(w, "  base     %s\n", s.cacheCfg.BaseURL)
	fmt.Fprintf(w, "  sweep    every %s\n", s.cacheCfg.CleanupInterval.Round(time.Second))
	return nil
}

func quota(n int64) string {
	if n <= 0 {
		return "unlimited"
	}
	return humanize.Bytes(uint64(n))
}

func mode(cfg cache.Config) string {
	if cfg.Production {
		return "production"
	}
	return "development"
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return humanize.Comma(int64(n)) + " " + plural
}
