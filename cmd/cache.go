package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every cached result",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := initCache()
		defer c.Close() //nolint:errcheck

		if err := c.Purge(cmd.Context()); err != nil {
			return eris.Wrap(err, "purge cache")
		}
		zap.L().Info("cache purged", zap.String("backend", cfg.Cache.Backend))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
