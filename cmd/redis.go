package cmd

import "github.com/spf13/cobra"

// redisCmd groups Redis-related subcommands. Only used with cache.backend=redis.
var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis utilities",
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
