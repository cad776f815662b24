package main

import (
	"os"

	"github.com/complyard/complyard/cmd/complyard/cmd"
)

// @title Complyard API
// @version 1.0
// @description Governance, risk and compliance management API
// @host localhost:8470
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
