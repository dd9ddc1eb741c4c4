package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lKakarot/phone-cleaner/internal/config"
	"github.com/lKakarot/phone-cleaner/internal/dedup"
	"github.com/lKakarot/phone-cleaner/internal/localfs"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates [directory]",
	Short: "Find exact duplicates by content hash",
	Long: `Hash the full original bytes of every item in a directory and group
byte-identical files together.

With --perceptual, an independent average-hash pass finds visually identical
photos that differ in encoding (recompressed, re-saved, stripped metadata).

Examples:
  # Exact duplicates only
  phone-cleaner duplicates ~/Pictures

  # Visual duplicates across re-encodes
  phone-cleaner duplicates --perceptual ~/Pictures`,
	Args: cobra.ExactArgs(1),
	RunE: runDuplicates,
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)

	duplicatesCmd.Flags().Bool("perceptual", false, "Use average-hash visual matching instead of content hashing")
	duplicatesCmd.Flags().Int("threshold", 0, "Average-hash distance for --perceptual (0 = default)")
	duplicatesCmd.Flags().Int("workers", 0, "Parallel hash workers (0 = default)")
	duplicatesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	perceptual := mustGetBool(cmd, "perceptual")
	threshold := mustGetInt(cmd, "threshold")
	workers := mustGetInt(cmd, "workers")
	jsonOutput := mustGetBool(cmd, "json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if workers == 0 {
		workers = cfg.Dedup.HashWorkers
	}
	if threshold == 0 {
		threshold = cfg.Dedup.PerceptualThreshold
	}

	store, err := localfs.New(args[0])
	if err != nil {
		return err
	}
	items, err := store.Scan()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No media found.")
		return nil
	}

	detector := dedup.NewDetector(store, dedup.Options{Workers: workers})

	var groups []media.Group
	variant := "exact"
	if perceptual {
		variant = "perceptual"
		bar := newProgressBar(100, "Matching")
		groups, err = detector.FindSimilar(ctx, items, threshold, func(p float64) {
			_ = bar.Set(int(p * 100))
		})
	} else {
		bar := newProgressBar(100, "Hashing")
		groups, err = detector.FindExact(ctx, items, func(p float64) {
			_ = bar.Set(int(p * 100))
		})
	}
	if err != nil {
		return fmt.Errorf("duplicate detection failed: %w", err)
	}
	fmt.Println() // New line after progress bar

	return printGroups(args[0], variant, len(items), groups, jsonOutput)
}
