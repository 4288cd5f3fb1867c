package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dylantcon/dgmt/internal/config"
	"github.com/dylantcon/dgmt/internal/utils"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultConfigPath
			}

			if utils.FileExists(path) {
				fmt.Printf("Config already exists: %s\n", path)
				return nil
			}

			if err := config.Default().Save(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Printf("Created config: %s\n", path)
			fmt.Println("Edit this file to configure your paths and settings.")
			return nil
		},
	}
}
