package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tforge version",
	Long:  `Print the version, commit, and build date tforge was compiled from.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(getVersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
