package localfs

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lKakarot/phone-cleaner/internal/media"
)

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestNewRejectsMissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing root")
	}
}

func TestNewRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Error("expected an error for a non-directory root")
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 8, 8)
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "sub", "b.png"), 8, 8)
	if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	items, err := store.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	byID := map[string]media.Item{}
	for _, it := range items {
		byID[it.ID] = it
	}
	if _, ok := byID["notes.txt"]; ok {
		t.Error("non-media file must be skipped")
	}
	if got := byID["a.png"].Kind; got != media.KindImage {
		t.Errorf("a.png kind = %v; want image", got)
	}
	if got := byID["clip.mp4"].Kind; got != media.KindVideo {
		t.Errorf("clip.mp4 kind = %v; want video", got)
	}
	if _, ok := byID["sub/b.png"]; !ok {
		t.Error("nested file missing; IDs should be slash-separated relative paths")
	}
	for _, it := range items {
		if it.Size <= 0 {
			t.Errorf("%s has no size", it.ID)
		}
		if it.TakenAt.IsZero() {
			t.Errorf("%s has no timestamp", it.ID)
		}
	}
}

func TestScanOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.png")
	recent := filepath.Join(dir, "recent.png")
	writePNG(t, old, 4, 4)
	writePNG(t, recent, 4, 4)

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	items, err := store.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if items[0].ID != "recent.png" || items[1].ID != "old.png" {
		t.Errorf("unexpected order: %s, %s", items[0].ID, items[1].ID)
	}
}

func TestItemResolvesScanID(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "sub", "photo.png"), 4, 4)

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	item, err := store.Item("sub/photo.png")
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if item.Kind != media.KindImage {
		t.Errorf("kind = %v; want image", item.Kind)
	}
	if item.AssetRef != filepath.Join(dir, "sub", "photo.png") {
		t.Errorf("asset ref = %s", item.AssetRef)
	}
	if item.Size <= 0 {
		t.Error("item has no size")
	}
}

func TestItemRejectsBadIDs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"gone.png", "notes.txt", "../escape.png"} {
		if _, err := store.Item(id); !errors.Is(err, media.ErrNotFound) {
			t.Errorf("Item(%q) = %v; want ErrNotFound", id, err)
		}
	}
}

func TestDecodeThumbnailBoundsSize(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "big.png"), 1024, 512)

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	items, err := store.Scan()
	if err != nil {
		t.Fatal(err)
	}

	img, err := store.DecodeThumbnail(context.Background(), items[0])
	if err != nil {
		t.Fatalf("DecodeThumbnail failed: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > thumbnailSize || bounds.Dy() > thumbnailSize {
		t.Errorf("thumbnail %dx%d exceeds bound %d", bounds.Dx(), bounds.Dy(), thumbnailSize)
	}
}

func TestDecodeThumbnailCachesResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	writePNG(t, path, 16, 16)

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	item := media.Item{ID: "img.png", AssetRef: path}

	if _, err := store.DecodeThumbnail(context.Background(), item); err != nil {
		t.Fatalf("first decode failed: %v", err)
	}

	// A cached decode must not touch the file again.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := store.DecodeThumbnail(context.Background(), item); err != nil {
		t.Errorf("cached decode failed: %v", err)
	}
}

func TestDecodeThumbnailNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	item := media.Item{ID: "gone.png", AssetRef: filepath.Join(store.root, "gone.png")}
	if _, err := store.DecodeThumbnail(context.Background(), item); !errors.Is(err, media.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.png")
	writePNG(t, path, 4, 4)
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	data, err := store.FetchOriginal(context.Background(), media.Item{ID: "raw.png", AssetRef: path})
	if err != nil {
		t.Fatalf("FetchOriginal failed: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Error("fetched bytes differ from the file on disk")
	}

	missing := media.Item{ID: "gone.png", AssetRef: filepath.Join(dir, "gone.png")}
	if _, err := store.FetchOriginal(context.Background(), missing); !errors.Is(err, media.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchPlayable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	var progress float64
	results, err := store.FetchPlayable(context.Background(), media.Item{ID: "movie.mp4", AssetRef: path}, func(p float64) {
		progress = p
	})
	if err != nil {
		t.Fatalf("FetchPlayable failed: %v", err)
	}

	res, ok := <-results
	if !ok {
		t.Fatal("channel closed without a result")
	}
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Degraded {
		t.Error("local files should never be degraded")
	}
	if res.Playable.URI != "file://"+path {
		t.Errorf("URI = %s; want file://%s", res.Playable.URI, path)
	}
	if progress != 1.0 {
		t.Errorf("progress = %f; want 1.0", progress)
	}
	if _, ok := <-results; ok {
		t.Error("channel should close after the final delivery")
	}
}

func TestFetchPlayableNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	item := media.Item{ID: "gone.mp4", AssetRef: filepath.Join(store.root, "gone.mp4")}
	results, err := store.FetchPlayable(context.Background(), item, nil)
	if err != nil {
		t.Fatalf("FetchPlayable failed: %v", err)
	}
	res := <-results
	if !errors.Is(res.Err, media.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", res.Err)
	}
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	writePNG(t, path, 40, 30)

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	p := &media.Playable{ItemID: "img.png", URI: "file://" + path}
	if err := store.LoadMetadata(context.Background(), p); err != nil {
		t.Fatalf("LoadMetadata failed: %v", err)
	}
	if p.Width != 40 || p.Height != 30 {
		t.Errorf("dimensions = %dx%d; want 40x30", p.Width, p.Height)
	}
}
