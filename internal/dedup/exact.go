// Package dedup finds exact duplicates by cryptographic content hash and
// near-duplicates by perceptual average hash.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lKakarot/phone-cleaner/internal/constants"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// Detector groups media items that share identical original bytes.
type Detector struct {
	store   media.AssetStore
	workers int
}

// Options tune duplicate detection. Zero values fall back to defaults.
type Options struct {
	Workers             int // parallel fetch+hash workers, default 4
	PerceptualThreshold int // average-hash distance, default 10
}

// NewDetector creates a Detector backed by the given asset store.
func NewDetector(store media.AssetStore, opts Options) *Detector {
	if opts.Workers <= 0 {
		opts.Workers = constants.DefaultHashWorkers
	}
	return &Detector{store: store, workers: opts.Workers}
}

// FindExact fetches each item's full original bytes (network allowed),
// computes a SHA-256 digest, and groups items by digest equality. Items whose
// bytes cannot be fetched are excluded from this run; other items are
// unaffected. Singleton groups are dropped; output groups are sorted by
// descending member count, members most-recent-first. onProgress, if non-nil,
// receives completed/total after each item.
func (d *Detector) FindExact(ctx context.Context, items []media.Item, onProgress func(float64)) ([]media.Group, error) {
	digests := make([]string, len(items))

	var progressMu sync.Mutex
	completed := 0
	report := func() {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		completed++
		p := float64(completed) / float64(len(items))
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
			data, err := d.store.FetchOriginal(gctx, items[i])
			if err != nil {
				// Fetch failure excludes this item from the run, nothing else.
				return nil
			}
			sum := sha256.Sum256(data)
			digests[i] = hex.EncodeToString(sum[:])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return groupByDigest(items, digests), nil
}

// groupByDigest assembles groups in input order from per-item digests.
// Empty digests mark excluded items.
func groupByDigest(items []media.Item, digests []string) []media.Group {
	var order []string
	byDigest := make(map[string][]media.Item)
	for i, item := range items {
		digest := digests[i]
		if digest == "" {
			continue
		}
		if _, ok := byDigest[digest]; !ok {
			order = append(order, digest)
		}
		byDigest[digest] = append(byDigest[digest], item)
	}

	var groups []media.Group
	for _, digest := range order {
		members := byDigest[digest]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].TakenAt.After(members[j].TakenAt)
		})
		groups = append(groups, media.Group{Items: members})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Items) > len(groups[j].Items)
	})
	return groups
}
