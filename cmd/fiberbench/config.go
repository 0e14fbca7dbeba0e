package main

import (
	"fmt"

	"github.com/joeycumines/go-fiber/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every registered setting with its effective value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := config.Default.DumpYAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered settings with their types and descriptions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		w := cmd.OutOrStdout()
		config.Default.Visit(func(e config.Entry) {
			_, _ = fmt.Fprintf(w, "%-18s %-14s %s\n", e.Name(), e.TypeName(), e.Description())
		})
	},
}

func init() {
	configCmd.AddCommand(configDumpCmd)
	configCmd.AddCommand(configListCmd)
}
