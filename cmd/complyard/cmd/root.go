package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "complyard",
	Short: "Complyard - governance, risk and compliance backend",
	Long: `Complyard is the backend server for governance, risk and compliance
management: risk register, incidents, governance items, compliance
frameworks, threat catalogue and security-awareness training.

Examples:
  # Start the server
  complyard serve

  # Start on a custom port
  complyard serve --port 9000

  # Create the initial admin account
  ADMIN_EMAIL=admin@example.com ADMIN_PASSWORD=secret complyard create-admin`,
}

func Execute() error {
	return rootCmd.Execute()
}
