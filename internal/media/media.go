// Package media defines the shared media model: items, groups, and the
// capability interfaces implemented by asset backends.
package media

import (
	"context"
	"errors"
	"image"
	"time"
)

// Kind distinguishes still images from videos.
type Kind int

// Kind constants for the two supported media types.
const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Item is a single media item owned by an external asset backend.
// All fields except Preview are immutable after construction.
type Item struct {
	ID       string    `json:"id"`
	AssetRef string    `json:"asset_ref"` // opaque handle understood by the AssetStore
	Size     int64     `json:"size"`
	TakenAt  time.Time `json:"taken_at,omitempty"` // zero value means unknown
	Kind     Kind      `json:"kind"`
	Preview  []byte    `json:"-"` // optional lightweight preview, attached lazily
}

// HasTakenAt reports whether the item carries a creation timestamp.
func (it Item) HasTakenAt() bool {
	return !it.TakenAt.IsZero()
}

// Group is an ordered, non-owning list of related items. Members are
// most-recent-first; the first member is the one a caller would keep.
type Group struct {
	Items []Item `json:"items"`
}

// Reclaimable returns the bytes freed by deleting all members except the first.
func (g Group) Reclaimable() int64 {
	var total int64
	for i := 1; i < len(g.Items); i++ {
		total += g.Items[i].Size
	}
	return total
}

// Playable is a prepared playable resource for a media item.
type Playable struct {
	ItemID   string        `json:"item_id"`
	URI      string        `json:"uri"`
	Duration time.Duration `json:"duration,omitempty"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
}

// PlayableResult is a single delivery from FetchPlayable. Backends may deliver
// a degraded placeholder before the final resource; consumers that need the
// real thing must skip degraded results.
type PlayableResult struct {
	Playable *Playable
	Degraded bool
	Err      error
}

// Errors returned by asset backends, classified by the loader.
var (
	ErrNotFound           = errors.New("media: asset not found")
	ErrDownloadFailed     = errors.New("media: download failed")
	ErrNetworkUnavailable = errors.New("media: network unavailable")
)

// AssetStore is the capability surface of an external asset backend. The core
// never reaches the backing storage directly; everything goes through here.
type AssetStore interface {
	// DecodeThumbnail decodes a lightweight pixel representation of the item,
	// suitable for perceptual hashing.
	DecodeThumbnail(ctx context.Context, item Item) (image.Image, error)

	// FetchOriginal fetches the full original bytes. May hit the network.
	FetchOriginal(ctx context.Context, item Item) ([]byte, error)

	// FetchPlayable prepares a playable resource for the item. Results are
	// delivered on the returned channel, which is closed after the final
	// delivery. onProgress, if non-nil, receives values in [0,1] while the
	// resource downloads; a value below 1.0 means the download is ongoing.
	FetchPlayable(ctx context.Context, item Item, onProgress func(float64)) (<-chan PlayableResult, error)

	// LoadMetadata fills in essential metadata on a prepared playable.
	// Failures are non-fatal to callers.
	LoadMetadata(ctx context.Context, p *Playable) error
}
