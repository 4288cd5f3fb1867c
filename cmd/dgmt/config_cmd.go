package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the current effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			cfg, err := effectiveConfig()
			if err != nil {
				return err
			}

			if cfg.Path != "" {
				fmt.Printf("Config file: %s\n", cfg.Path)
			} else {
				fmt.Println("Config file: (none found, showing defaults)")
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
