// Package localfs implements the media.AssetStore capability over a local
// directory tree.
package localfs

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lKakarot/phone-cleaner/internal/cache"
	"github.com/lKakarot/phone-cleaner/internal/constants"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// thumbnailSize bounds the decoded thumbnail's longest edge. Hashing
// resamples far below this anyway.
const thumbnailSize = 256

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".webm": true,
	".avi":  true,
	".mkv":  true,
}

// Store is a media.AssetStore backed by files under a root directory.
// Item asset refs are absolute file paths. Decoded thumbnails are kept in a
// small cache so repeat hashing passes skip the decode.
type Store struct {
	root string

	imgMu  sync.Mutex
	images *cache.LRU[image.Image]
}

// New creates a Store rooted at dir.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	return &Store{
		root:   abs,
		images: cache.NewLRU[image.Image](constants.DefaultImageCacheCapacity),
	}, nil
}

// Scan walks the root directory and returns the media items found, newest
// first. Item IDs are root-relative paths, stable across sessions.
func (s *Store) Scan() ([]media.Item, error) {
	var items []media.Item
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		var kind media.Kind
		switch {
		case imageExtensions[ext]:
			kind = media.KindImage
		case videoExtensions[ext]:
			kind = media.KindVideo
		default:
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		items = append(items, media.Item{
			ID:       filepath.ToSlash(rel),
			AssetRef: path,
			Size:     info.Size(),
			TakenAt:  takenAt(path, info),
			Kind:     kind,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.root, err)
	}

	// Clustering assumes date-descending input order.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TakenAt.After(items[j].TakenAt)
	})
	return items, nil
}

// Item resolves a scan-issued ID back to a media item. IDs are root-relative
// slash paths; anything escaping the root or pointing at a non-media file is
// rejected.
func (s *Store) Item(id string) (media.Item, error) {
	path := filepath.Join(s.root, filepath.FromSlash(id))
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return media.Item{}, fmt.Errorf("%w: %s", media.ErrNotFound, id)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var kind media.Kind
	switch {
	case imageExtensions[ext]:
		kind = media.KindImage
	case videoExtensions[ext]:
		kind = media.KindVideo
	default:
		return media.Item{}, fmt.Errorf("%w: %s", media.ErrNotFound, id)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return media.Item{}, fmt.Errorf("%w: %s", media.ErrNotFound, id)
		}
		return media.Item{}, fmt.Errorf("stat %s: %w", id, err)
	}

	return media.Item{
		ID:       id,
		AssetRef: path,
		Size:     info.Size(),
		TakenAt:  takenAt(path, info),
		Kind:     kind,
	}, nil
}

// DecodeThumbnail decodes the item to pixels, auto-orienting from EXIF and
// bounding the result for cheap hashing.
func (s *Store) DecodeThumbnail(ctx context.Context, item media.Item) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.imgMu.Lock()
	if img, ok := s.images.Get(item.ID); ok {
		s.imgMu.Unlock()
		return img, nil
	}
	s.imgMu.Unlock()

	img, err := imaging.Open(item.AssetRef, imaging.AutoOrientation(true))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", media.ErrNotFound, item.ID)
		}
		return nil, fmt.Errorf("decoding %s: %w", item.ID, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > thumbnailSize || bounds.Dy() > thumbnailSize {
		img = imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	}

	s.imgMu.Lock()
	s.images.Put(item.ID, img)
	s.imgMu.Unlock()
	return img, nil
}

// FetchOriginal reads the item's full bytes.
func (s *Store) FetchOriginal(ctx context.Context, item media.Item) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(item.AssetRef)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", media.ErrNotFound, item.ID)
		}
		return nil, fmt.Errorf("reading %s: %w", item.ID, err)
	}
	return data, nil
}

// FetchPlayable prepares a playable resource for the item. Local files need
// no cloud download, so a single non-degraded result is delivered.
func (s *Store) FetchPlayable(ctx context.Context, item media.Item, onProgress func(float64)) (<-chan media.PlayableResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make(chan media.PlayableResult, 1)
	go func() {
		defer close(results)
		if _, err := os.Stat(item.AssetRef); err != nil {
			if os.IsNotExist(err) {
				results <- media.PlayableResult{Err: fmt.Errorf("%w: %s", media.ErrNotFound, item.ID)}
			} else {
				results <- media.PlayableResult{Err: fmt.Errorf("stat %s: %w", item.ID, err)}
			}
			return
		}
		if onProgress != nil {
			onProgress(1.0)
		}
		select {
		case <-ctx.Done():
		case results <- media.PlayableResult{Playable: &media.Playable{
			ItemID: item.ID,
			URI:    "file://" + item.AssetRef,
		}}:
		}
	}()
	return results, nil
}

// LoadMetadata fills in pixel dimensions for image-backed playables.
func (s *Store) LoadMetadata(ctx context.Context, p *media.Playable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := strings.TrimPrefix(p.URI, "file://")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		// Videos and undecodable formats keep zero dimensions.
		return nil
	}
	p.Width = cfg.Width
	p.Height = cfg.Height
	return nil
}

// takenAt extracts the capture time from EXIF when available, falling back
// to the file's modification time.
func takenAt(path string, info fs.FileInfo) time.Time {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".tif" && ext != ".tiff" {
		return info.ModTime()
	}
	f, err := os.Open(path)
	if err != nil {
		return info.ModTime()
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return info.ModTime()
	}
	if t, err := x.DateTime(); err == nil {
		return t
	}
	return info.ModTime()
}
