package dedup

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lKakarot/phone-cleaner/internal/constants"
	"github.com/lKakarot/phone-cleaner/internal/fingerprint"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// FindSimilar runs the perceptual duplicate path: an independent average hash
// per still image (32x32 grayscale samples, each bit set when the sample
// exceeds the image mean), then greedy single-link clustering at the given
// distance threshold. Combined progress weights the two phases 50/50:
// fingerprinting reports into [0, 0.5], clustering into (0.5, 1].
func (d *Detector) FindSimilar(ctx context.Context, items []media.Item, threshold int, onProgress func(float64)) ([]media.Group, error) {
	if threshold <= 0 {
		threshold = constants.DefaultPerceptualThreshold
	}

	hashes := make([]*fingerprint.AvgHash, len(items))

	var progressMu sync.Mutex
	hashed := 0
	report := func() {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		hashed++
		p := 0.5 * float64(hashed) / float64(len(items))
		progressMu.Unlock()
		onProgress(p)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i := range items {
		i := i
		g.Go(func() error {
			defer report()
			if err := gctx.Err(); err != nil {
				return err
			}
			if items[i].Kind != media.KindImage {
				return nil
			}
			img, err := d.store.DecodeThumbnail(gctx, items[i])
			if err != nil || img == nil {
				return nil
			}
			h := fingerprint.ComputeAverage(img)
			hashes[i] = &h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	groups := clusterAverage(ctx, items, hashes, threshold, onProgress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// clusterAverage is the same greedy single-link rule used for difference-hash
// clustering, applied to average hashes. Items without a hash never
// participate.
func clusterAverage(ctx context.Context, items []media.Item, hashes []*fingerprint.AvgHash, threshold int, onProgress func(float64)) []media.Group {
	processed := make([]bool, len(items))

	var groups []media.Group
	for i := range items {
		if ctx.Err() != nil {
			return nil
		}
		if hashes[i] == nil || processed[i] {
			continue
		}
		processed[i] = true

		members := []media.Item{items[i]}
		for j := i + 1; j < len(items); j++ {
			if hashes[j] == nil || processed[j] {
				continue
			}
			if fingerprint.AverageDistance(*hashes[i], *hashes[j]) <= threshold {
				processed[j] = true
				members = append(members, items[j])
			}
		}

		if len(members) >= 2 {
			sort.SliceStable(members, func(a, b int) bool {
				return members[a].TakenAt.After(members[b].TakenAt)
			})
			groups = append(groups, media.Group{Items: members})
		}

		if onProgress != nil {
			onProgress(0.5 + 0.5*float64(i+1)/float64(len(items)))
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Items[0].TakenAt.After(groups[b].Items[0].TakenAt)
	})

	if onProgress != nil {
		onProgress(1)
	}
	return groups
}
