package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blobcourier",
		Short: "blobcourier — encrypted blob transfer client",
		Long: `blobcourier moves single named payloads to and from remote blob storage:
  • Upload, download, and delete against S3-compatible storage
  • Optional end-to-end AES-256-GCM encryption with Argon2id key derivation
  • Optional transparent zstd compression
  • Live transfer progress`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Add commands
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(urlCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
