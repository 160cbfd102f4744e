// Package main implements the frame-classifier CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// version information
	version = "dev"

	configPath  string
	envFilePath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "frame-classifier",
	Short: "Real-time k-nearest-neighbor classification of frame embeddings",
	Long: `frame-classifier trains a k-nearest-neighbor classifier on embedding vectors
while a training label is held, classifies every frame and fires a transition
event each time the predicted class changes.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFilePath, "env-file", ".env", "optional .env file loaded before reading FRAMECLS_ variables")
	rootCmd.AddCommand(replayCmd)
}
