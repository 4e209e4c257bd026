package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the audio cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show audio cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close() //nolint:errcheck

		s := e.manager.CacheStats()
		fmt.Printf("memory cache: %s of %s (%d items)\n",
			formatBytes(s.Size), formatBytes(s.Capacity), s.ItemCount)
		fmt.Printf("hit rate:     %.1f%% (%d hits, %d misses, %d evictions)\n",
			s.HitRate*100, s.Hits, s.Misses, s.Evictions)

		d := e.store.DiskStats()
		if d.Capacity > 0 {
			fmt.Printf("disk cache:   %s of %s (%d items)\n",
				formatBytes(d.Size), formatBytes(d.Capacity), d.ItemCount)
			if !d.LastAccess.IsZero() {
				fmt.Printf("last access:  %s\n", humanize.Time(d.LastAccess))
			}
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached audio",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close() //nolint:errcheck

		if err := e.manager.ClearCache(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Println("audio cache cleared")
		return nil
	},
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
