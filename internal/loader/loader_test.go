package loader

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lKakarot/phone-cleaner/internal/media"
)

// scriptedStore replays a fixed sequence of deliveries per fetch. A nil
// deliveries slice blocks until the context is done.
type scriptedStore struct {
	deliveries []media.PlayableResult
	fetchErr   error
	block      bool

	fetchCalls atomic.Int32
}

func (s *scriptedStore) FetchPlayable(ctx context.Context, item media.Item, onProgress func(float64)) (<-chan media.PlayableResult, error) {
	s.fetchCalls.Add(1)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	ch := make(chan media.PlayableResult, len(s.deliveries)+1)
	if s.block {
		// Never deliver; the loader must react to ctx alone.
		return ch, nil
	}
	for _, res := range s.deliveries {
		ch <- res
	}
	close(ch)
	return ch, nil
}

func (s *scriptedStore) DecodeThumbnail(ctx context.Context, item media.Item) (image.Image, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedStore) FetchOriginal(ctx context.Context, item media.Item) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedStore) LoadMetadata(ctx context.Context, p *media.Playable) error {
	return nil
}

func playable(id string) *media.Playable {
	return &media.Playable{ItemID: id, URI: "file:///" + id}
}

func item(id string) media.Item {
	return media.Item{ID: id, Kind: media.KindVideo}
}

// waitTerminal drains states until a terminal one arrives or the test times
// out.
func waitTerminal(t *testing.T, ch chan State) State {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch:
			if s.Terminal() {
				return s
			}
		case <-deadline:
			t.Fatal("no terminal state within deadline")
		}
	}
}

func TestLoadSuccess(t *testing.T) {
	store := &scriptedStore{deliveries: []media.PlayableResult{
		{Playable: playable("v1")},
	}}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("v1"), 0)

	s := waitTerminal(t, ch)
	if s.Phase != PhaseReady {
		t.Fatalf("phase = %v; want ready (%v)", s.Phase, s)
	}
	if s.Resource == nil || s.Resource.ItemID != "v1" {
		t.Errorf("unexpected resource: %+v", s.Resource)
	}
}

func TestLoadCacheHitSkipsStore(t *testing.T) {
	store := &scriptedStore{deliveries: []media.PlayableResult{
		{Playable: playable("v1")},
	}}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("v1"), 0)
	waitTerminal(t, ch)

	l.Load(item("v1"), 0)
	s := waitTerminal(t, ch)
	if s.Phase != PhaseReady {
		t.Fatalf("phase = %v; want ready", s.Phase)
	}
	if got := store.fetchCalls.Load(); got != 1 {
		t.Errorf("fetch calls = %d; want 1 (second load served from cache)", got)
	}
}

func TestLoadSkipsDegradedResults(t *testing.T) {
	store := &scriptedStore{deliveries: []media.PlayableResult{
		{Playable: playable("v1-preview"), Degraded: true},
		{Playable: playable("v1")},
	}}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("v1"), 0)

	s := waitTerminal(t, ch)
	if s.Phase != PhaseReady {
		t.Fatalf("phase = %v; want ready", s.Phase)
	}
	if s.Resource.ItemID != "v1" {
		t.Errorf("resource = %s; want the non-degraded v1", s.Resource.ItemID)
	}
}

func TestLoadClosedChannelMeansNotFound(t *testing.T) {
	store := &scriptedStore{} // closes without delivering
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("missing"), 0)

	s := waitTerminal(t, ch)
	if s.Phase != PhaseFailed || s.Kind != KindNotFound {
		t.Errorf("state = %+v; want failed/not_found", s)
	}
}

func TestLoadDeliveredError(t *testing.T) {
	store := &scriptedStore{deliveries: []media.PlayableResult{
		{Err: media.ErrDownloadFailed},
	}}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("v1"), 0)

	s := waitTerminal(t, ch)
	if s.Phase != PhaseFailed || s.Kind != KindDownloadFailed {
		t.Errorf("state = %+v; want failed/download_failed", s)
	}
}

func TestLoadTimeout(t *testing.T) {
	store := &scriptedStore{block: true}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("v1"), 20*time.Millisecond)

	s := waitTerminal(t, ch)
	if s.Phase != PhaseFailed || s.Kind != KindTimeout {
		t.Errorf("state = %+v; want failed/timeout", s)
	}
}

func TestSupersededLoadEmitsSingleTerminal(t *testing.T) {
	store := &perItemStore{}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	// The second load cancels the first before it can resolve; only the
	// second may reach a terminal state.
	l.Load(item("blocked"), 0)
	l.Load(item("second"), 0)

	s := waitTerminal(t, ch)
	if s.Phase != PhaseReady || s.Resource.ItemID != "second" {
		t.Fatalf("terminal state = %+v; want ready for second", s)
	}

	// Give the superseded goroutine time to (incorrectly) emit.
	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case extra := <-ch:
			if extra.Terminal() {
				t.Fatalf("superseded request emitted a terminal state: %+v", extra)
			}
		default:
			return
		}
	}
}

func TestCancelReturnsToIdle(t *testing.T) {
	store := &scriptedStore{block: true}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("v1"), 0)
	l.Cancel()

	if got := l.State().Phase; got != PhaseIdle {
		t.Errorf("phase after cancel = %v; want idle", got)
	}

	// The aborted fetch must stay silent.
	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case s := <-ch:
			if s.Terminal() {
				t.Fatalf("cancelled request emitted a terminal state: %+v", s)
			}
		default:
			return
		}
	}
}

func TestDownloadProgressStates(t *testing.T) {
	store := &progressStore{}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("v1"), 0)

	sawDownloading := false
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch:
			if s.Phase == PhaseDownloading {
				if s.Progress <= 0 || s.Progress >= 1 {
					t.Errorf("downloading progress %f outside (0,1)", s.Progress)
				}
				sawDownloading = true
			}
			if s.Terminal() {
				if s.Phase != PhaseReady {
					t.Fatalf("terminal state = %+v; want ready", s)
				}
				if !sawDownloading {
					t.Error("no downloading state observed before ready")
				}
				return
			}
		case <-deadline:
			t.Fatal("no terminal state within deadline")
		}
	}
}

// perItemStore blocks fetches for the "blocked" item and resolves everything
// else immediately.
type perItemStore struct {
	scriptedStore
}

func (s *perItemStore) FetchPlayable(ctx context.Context, item media.Item, onProgress func(float64)) (<-chan media.PlayableResult, error) {
	ch := make(chan media.PlayableResult, 1)
	if item.ID == "blocked" {
		return ch, nil
	}
	ch <- media.PlayableResult{Playable: playable(item.ID)}
	close(ch)
	return ch, nil
}

// progressStore reports partial download progress before delivering.
type progressStore struct {
	scriptedStore
}

func (s *progressStore) FetchPlayable(ctx context.Context, item media.Item, onProgress func(float64)) (<-chan media.PlayableResult, error) {
	if onProgress != nil {
		onProgress(0.25)
		onProgress(0.75)
		onProgress(1.0)
	}
	ch := make(chan media.PlayableResult, 1)
	ch <- media.PlayableResult{Playable: playable(item.ID)}
	close(ch)
	return ch, nil
}

func TestClearCache(t *testing.T) {
	store := &scriptedStore{deliveries: []media.PlayableResult{
		{Playable: playable("v1")},
	}}
	l := New(store, 0)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Load(item("v1"), 0)
	waitTerminal(t, ch)

	l.ClearCache()
	l.Load(item("v1"), 0)
	waitTerminal(t, ch)

	if got := store.fetchCalls.Load(); got != 2 {
		t.Errorf("fetch calls = %d; want 2 after cache clear", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"not found", media.ErrNotFound, KindNotFound},
		{"download failed", media.ErrDownloadFailed, KindDownloadFailed},
		{"network unavailable", media.ErrNetworkUnavailable, KindNetworkUnavailable},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"cancelled", context.Canceled, KindCancelled},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v; want %v", tt.err, got, tt.want)
			}
		})
	}
}
