package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purge bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired and corrupt cache entries",
	Long: paragraph(fmt.Sprintf("\n%s the durable caches, removing expired and unreadable items. With --purge every item is removed.",
		keyword("Sweep"))),
	Example: paragraph("offlinekit sweep\nofflinekit sweep --purge"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		s, err := openSubsystem()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		if purge {
			for _, d := range s.caches.Durables() {
				if !d.Clear() {
					return fmt.Errorf("unable to purge %s cache", d.Name())
				}
			}
			fmt.Println("Purged all durable caches")
			return nil
		}

		removed := s.ctrl.Sweep()
		fmt.Printf("Removed %s\n", plural(removed, "item", "items"))
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&purge, "purge", false, "remove every item, expired or not")
}
