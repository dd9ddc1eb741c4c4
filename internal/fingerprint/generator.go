package fingerprint

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/lKakarot/phone-cleaner/internal/cache"
	"github.com/lKakarot/phone-cleaner/internal/constants"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// Generator computes fingerprints for batches of media items, memoizing
// results in a bounded cache keyed by item ID.
//
// The memo cache is never invalidated when underlying asset bytes change;
// derived state lives only for the session, so an edited photo keeps its old
// fingerprint until the generator is rebuilt.
type Generator struct {
	store media.AssetStore

	memoMu sync.Mutex
	memo   *cache.LRU[uint64]

	batchSize  int
	maxDecodes int
}

// GeneratorOptions tune batch processing. Zero values fall back to defaults.
type GeneratorOptions struct {
	BatchSize    int // items per batch, default 8
	MaxDecodes   int // concurrent decodes per batch, default 4
	MemoCapacity int // resident memoized fingerprints, default 5000
}

// NewGenerator creates a Generator backed by the given asset store.
func NewGenerator(store media.AssetStore, opts GeneratorOptions) *Generator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = constants.FingerprintBatchSize
	}
	if opts.MaxDecodes <= 0 {
		opts.MaxDecodes = constants.MaxConcurrentDecodes
	}
	if opts.MemoCapacity <= 0 {
		opts.MemoCapacity = constants.FingerprintMemoCapacity
	}
	return &Generator{
		store:      store,
		memo:       cache.NewLRU[uint64](opts.MemoCapacity),
		batchSize:  opts.BatchSize,
		maxDecodes: opts.MaxDecodes,
	}
}

// ComputeOne computes (or recalls) the fingerprint for a single item.
// Decode failures and non-image items yield the sentinel value.
func (g *Generator) ComputeOne(ctx context.Context, item media.Item) uint64 {
	g.memoMu.Lock()
	if fp, ok := g.memo.Get(item.ID); ok {
		g.memoMu.Unlock()
		return fp
	}
	g.memoMu.Unlock()

	fp, computed := g.compute(ctx, item)
	if !computed {
		return fp
	}

	g.memoMu.Lock()
	g.memo.Put(item.ID, fp)
	g.memoMu.Unlock()
	return fp
}

// ComputeAll computes fingerprints for all items, returning a map from item ID
// to fingerprint. Memoized entries are served first; the remainder is
// processed in fixed-size batches with a bounded number of concurrent
// decodes. Batches run strictly sequentially, and after each batch merge
// onProgress (if non-nil) receives (cached+completed)/total, so progress is
// monotonic. Cancellation is checked at batch boundaries; fingerprints
// already merged stay cached and reusable.
func (g *Generator) ComputeAll(ctx context.Context, items []media.Item, onProgress func(float64)) (map[string]uint64, error) {
	results := make(map[string]uint64, len(items))
	if len(items) == 0 {
		return results, nil
	}

	var pending []media.Item
	g.memoMu.Lock()
	for _, item := range items {
		if fp, ok := g.memo.Get(item.ID); ok {
			results[item.ID] = fp
		} else {
			pending = append(pending, item)
		}
	}
	g.memoMu.Unlock()

	total := len(items)
	done := len(results)

	if len(pending) == 0 {
		if onProgress != nil {
			onProgress(1)
		}
		return results, nil
	}

	for start := 0; start < len(pending); start += g.batchSize {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := min(start+g.batchSize, len(pending))
		batch := pending[start:end]

		batchResults := make([]uint64, len(batch))
		computed := make([]bool, len(batch))
		semaphore := make(chan struct{}, g.maxDecodes)
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(idx int, item media.Item) {
				defer wg.Done()

				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				batchResults[idx], computed[idx] = g.compute(ctx, item)
			}(i, batch[i])
		}
		wg.Wait()

		// Merge before reporting so a cancelled caller still reuses this
		// batch. Items interrupted by cancellation are not merged: a real
		// fingerprint stays computable on the next run.
		g.memoMu.Lock()
		for i, item := range batch {
			if !computed[i] {
				continue
			}
			results[item.ID] = batchResults[i]
			g.memo.Put(item.ID, batchResults[i])
			done++
		}
		g.memoMu.Unlock()

		if onProgress != nil {
			onProgress(float64(done) / float64(total))
		}

		if err := ctx.Err(); err != nil {
			return results, err
		}

		// Yield between batches so a long run never monopolizes the scheduler.
		runtime.Gosched()
	}

	return results, nil
}

// MemoLen returns the number of memoized fingerprints.
func (g *Generator) MemoLen() int {
	g.memoMu.Lock()
	defer g.memoMu.Unlock()
	return g.memo.Len()
}

// compute decodes and hashes one item. Only still images get perceptual
// hashes; videos and failed decodes map to the sentinel. A decode interrupted
// by cancellation is reported as not computed so it is never memoized as a
// sentinel.
func (g *Generator) compute(ctx context.Context, item media.Item) (uint64, bool) {
	if item.Kind != media.KindImage {
		return Sentinel, true
	}
	img, err := g.store.DecodeThumbnail(ctx, item)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Sentinel, false
		}
		return Sentinel, true
	}
	if img == nil {
		return Sentinel, true
	}
	return Compute(img), true
}
