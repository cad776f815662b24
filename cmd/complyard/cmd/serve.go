package cmd

import (
	"github.com/complyard/complyard/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the HTTP API server and block until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.RunWithSignalHandling(server.Config{
			Port:    servePort,
			Version: Version,
		})
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to run the server on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
