// chatctl is a terminal client for the Argo CD chat assistant.
package main

import (
	"fmt"
	"os"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
