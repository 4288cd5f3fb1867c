package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dylantcon/dgmt/internal/version"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the dgmt version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Detailed())
		},
	})
}
