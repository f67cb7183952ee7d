package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-traffic-history/internal/config"
	"github.com/kurihiro0119/github-traffic-history/internal/domain"
)

var initRepos []string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long:  `Write a commented starter configuration to --config. An existing file is never overwritten.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringSliceVar(&initRepos, "repo", nil, "repository to track (owner/name), repeatable")
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	for _, r := range initRepos {
		if _, err := domain.ParseRepository(r); err != nil {
			return err
		}
	}
	if err := config.WriteSample(cfgFile, initRepos); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgFile)
	return nil
}
