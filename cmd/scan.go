package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lKakarot/phone-cleaner/internal/cluster"
	"github.com/lKakarot/phone-cleaner/internal/config"
	"github.com/lKakarot/phone-cleaner/internal/fingerprint"
	"github.com/lKakarot/phone-cleaner/internal/localfs"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Find groups of similar photos in a directory",
	Long: `Scan a directory, fingerprint every still image, and cluster the results
into similarity groups.

Variants:
  flat   single global pass over all fingerprinted items
  dated  clusters only photos taken within a day window of each other
  dual   strict threshold clusters regardless of date, loose threshold
         clusters only within the day window

Examples:
  # Default flat clustering
  phone-cleaner scan ~/Pictures

  # Burst/edit detection with date awareness
  phone-cleaner scan --variant dual ~/Pictures

  # Tighter matching
  phone-cleaner scan --threshold 5 ~/Pictures`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("variant", "flat", "Clustering variant: flat, dated, or dual")
	scanCmd.Flags().Int("threshold", 0, "Max Hamming distance (0 = variant default)")
	scanCmd.Flags().Int("day-window", 0, "Day window for dated/dual variants (0 = variant default)")
	scanCmd.Flags().Int("strict", 0, "Strict threshold for the dual variant (0 = default)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
}

// GroupReport is the JSON output structure for one group.
type GroupReport struct {
	Members     []string `json:"members"`
	Count       int      `json:"count"`
	Reclaimable int64    `json:"reclaimable_bytes"`
}

// ScanOutput is the JSON output structure for the scan command.
type ScanOutput struct {
	Directory   string        `json:"directory"`
	Variant     string        `json:"variant"`
	ItemCount   int           `json:"item_count"`
	Groups      []GroupReport `json:"groups"`
	Reclaimable int64         `json:"reclaimable_bytes"`
}

func runScan(cmd *cobra.Command, args []string) error {
	variant := mustGetString(cmd, "variant")
	threshold := mustGetInt(cmd, "threshold")
	dayWindow := mustGetInt(cmd, "day-window")
	strict := mustGetInt(cmd, "strict")
	jsonOutput := mustGetBool(cmd, "json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

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

	gen := fingerprint.NewGenerator(store, fingerprint.GeneratorOptions{
		BatchSize:    cfg.Fingerprint.BatchSize,
		MaxDecodes:   cfg.Fingerprint.MaxConcurrentDecodes,
		MemoCapacity: cfg.Fingerprint.MemoCapacity,
	})

	bar := newProgressBar(100, "Fingerprinting")
	fps, err := gen.ComputeAll(ctx, items, func(p float64) {
		_ = bar.Set(int(p * 100))
	})
	if err != nil {
		return fmt.Errorf("fingerprinting failed: %w", err)
	}
	fmt.Println() // New line after progress bar

	var groups []media.Group
	switch variant {
	case "flat":
		if threshold == 0 {
			threshold = cfg.Clustering.FlatThreshold
		}
		groups = cluster.Flat(items, fps, threshold)
	case "dated":
		if threshold == 0 {
			threshold = cfg.Clustering.DateWindowedThreshold
		}
		if dayWindow == 0 {
			dayWindow = cfg.Clustering.DayWindow
		}
		groups = cluster.DateWindowed(items, fps, threshold, dayWindow)
	case "dual":
		if strict == 0 {
			strict = cfg.Clustering.StrictThreshold
		}
		if threshold == 0 {
			threshold = cfg.Clustering.LooseThreshold
		}
		if dayWindow == 0 {
			dayWindow = cfg.Clustering.DualDayWindow
		}
		groups = cluster.DualThreshold(items, fps, strict, threshold, dayWindow)
	default:
		return fmt.Errorf("unknown variant %q (expected flat, dated, or dual)", variant)
	}

	return printGroups(args[0], variant, len(items), groups, jsonOutput)
}

func printGroups(dir, variant string, itemCount int, groups []media.Group, jsonOutput bool) error {
	if jsonOutput {
		out := ScanOutput{
			Directory: dir,
			Variant:   variant,
			ItemCount: itemCount,
		}
		for _, g := range groups {
			report := GroupReport{Count: len(g.Items), Reclaimable: g.Reclaimable()}
			for _, it := range g.Items {
				report.Members = append(report.Members, it.ID)
			}
			out.Groups = append(out.Groups, report)
			out.Reclaimable += g.Reclaimable()
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(groups) == 0 {
		fmt.Printf("No duplicate groups found among %d items.\n", itemCount)
		return nil
	}

	var reclaimable int64
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tCOUNT\tRECLAIMABLE\tKEEP\tDELETE")
	for i, g := range groups {
		reclaimable += g.Reclaimable()
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
			i+1, len(g.Items), formatBytes(g.Reclaimable()), g.Items[0].ID, joinIDs(g.Items[1:]))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d groups, %s reclaimable across %d items.\n", len(groups), formatBytes(reclaimable), itemCount)
	return nil
}

func joinIDs(items []media.Item) string {
	s := ""
	for i, it := range items {
		if i > 0 {
			s += ", "
		}
		s += it.ID
	}
	return s
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
