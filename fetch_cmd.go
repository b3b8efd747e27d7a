package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/offlinekit/internal/cache"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch URL...",
	Short: "Fetch resources through the static cache",
	Long: paragraph(fmt.Sprintf("\n%s each URL through the static cache and report whether it came from the network or the cache. Repeating a URL shows a cache hit.",
		keyword("Fetch"))),
	Example: paragraph("offlinekit fetch https://app.example.com/static/js/main.js https://app.example.com/static/js/main.js"),
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSubsystem()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		var hits, total int
		unsubscribe := s.timings.Subscribe(func(rt cache.ResourceTiming) {
			total++
			source := "network"
			if rt.FromCache() {
				hits++
				source = "cache"
			}
			fmt.Printf("%-7s %8s  %s\n", source, humanize.Bytes(uint64(rt.DecodedSize)), rt.Name) //nolint:gosec
		})
		defer unsubscribe()

		for _, u := range args {
			if _, err := s.probe.Fetch(cmd.Context(), u); err != nil {
				fmt.Printf("%-7s %8s  %s %s\n", "failed", "-", u, faint(err.Error()))
			}
		}

		if total > 0 {
			fmt.Println(faint(fmt.Sprintf("%d of %d served from cache", hits, total)))
		}
		return nil
	},
}
