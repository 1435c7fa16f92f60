// Command zensyncctl is the operator tool for a ZenSync deployment: schema
// migrations, bearer tokens for testing and offline achievement verification.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
