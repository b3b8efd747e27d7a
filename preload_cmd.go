package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/offlinekit/internal/cache"
)

var preloadCmd = &cobra.Command{
	Use:   "preload [URL...]",
	Short: "Check critical resources and print preload hints",
	Long: paragraph(fmt.Sprintf("\n%s each resource and print a preload hint for the ones that exist. Without arguments the default stylesheet and script under the public URL are checked. Only production builds preload.",
		keyword("Check"))),
	Example: paragraph("OFFLINEKIT_MODE=production offlinekit preload\nofflinekit preload https://app.example.com/static/js/main.js"),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSubsystem()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		if !s.cacheCfg.Production {
			fmt.Println(faint("Development build, nothing to preload"))
			return nil
		}

		resources := args
		if len(resources) == 0 {
			resources = cache.DefaultResources(s.cacheCfg.BaseURL)
		}
		s.ctrl.Preload(cmd.Context(), resources)

		for _, h := range s.hints.Hints() {
			fmt.Printf("<link rel=\"preload\" href=%q as=%q>\n", h.Href, h.As)
		}
		return nil
	},
}
