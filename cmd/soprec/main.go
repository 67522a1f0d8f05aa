// Command soprec is the SOPify session recorder: it drives a Chrome
// instance, captures interaction steps as screenshots, and uploads the
// finished session to the backend as an SOP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "soprec",
	Short: "Record browsing sessions as SOP documents",
	Long: `soprec drives a Chrome instance and records your interactions —
clicks, typing, scrolling — as SOP steps with screenshots, then uploads
them to a SOPify backend.

Start with "soprec login" to store a session token, then "soprec run".`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the soprec version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("soprec", version)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.AddCommand(versionCmd, runCmd, loginCmd, logoutCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
