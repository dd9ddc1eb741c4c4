package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "phone-cleaner",
	Short: "A CLI tool for finding duplicate and similar photos",
	Long: `Phone Cleaner scans a directory of photos and videos and finds
byte-identical duplicates and perceptually similar shots, reporting how much
space deleting the redundant copies would reclaim.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
