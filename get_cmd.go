package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/offlinekit/internal/cache"
)

var (
	storeName string
	ttl       time.Duration

	getCmd = &cobra.Command{
		Use:   "get KEY",
		Short: "Print a cached item",
		Long:  paragraph(fmt.Sprintf("\n%s a durable cache item as JSON. Expired and unreadable items are reported as missing.", keyword("Print"))),
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDurable(func(d *cache.DurableCache) error {
				raw, ok := d.Raw(args[0])
				if !ok {
					return fmt.Errorf("%q is not cached", args[0])
				}
				fmt.Println(string(raw))
				return nil
			})
		},
	}

	setCmd = &cobra.Command{
		Use:     "set KEY VALUE",
		Short:   "Cache an item",
		Long:    paragraph(fmt.Sprintf("\n%s VALUE under KEY. VALUE is stored as JSON when it parses, and as a string otherwise.", keyword("Cache"))),
		Example: paragraph("offlinekit set user '{\"id\":1}' --ttl 1h\nofflinekit set banner hello"),
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			var value any = args[1]
			if json.Valid([]byte(args[1])) {
				value = json.RawMessage(args[1])
			}
			return withDurable(func(d *cache.DurableCache) error {
				if !d.Set(args[0], value, ttl) {
					return fmt.Errorf("unable to cache %q", args[0])
				}
				return nil
			})
		},
	}

	rmCmd = &cobra.Command{
		Use:   "rm KEY",
		Short: "Remove a cached item",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDurable(func(d *cache.DurableCache) error {
				if !d.Remove(args[0]) {
					return fmt.Errorf("unable to remove %q", args[0])
				}
				return nil
			})
		},
	}
)

func withDurable(fn func(*cache.DurableCache) error) error {
	s, err := openSubsystem()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	d := s.caches.Durable(storeName)
	if d == nil {
		return fmt.Errorf("unknown cache %q", storeName)
	}
	return fn(d)
}

func init() {
	for _, c := range []*cobra.Command{getCmd, setCmd, rmCmd} {
		c.Flags().StringVar(&storeName, "cache", cache.PersistentCache, "durable cache to use")
	}
	setCmd.Flags().DurationVar(&ttl, "ttl", cache.NoExpiry, "time to live (negative for no expiry)")
}
