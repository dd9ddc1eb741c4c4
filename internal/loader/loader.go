// Package loader provides a cancellable state machine around "fetch playable
// resource", with cloud-download progress and cache short-circuiting.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lKakarot/phone-cleaner/internal/cache"
	"github.com/lKakarot/phone-cleaner/internal/constants"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// Phase identifies the loader's position in its lifecycle.
type Phase int

// Loader phases. Ready and Failed are terminal for a single request; the
// loader itself stays reusable.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseDownloading
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseDownloading:
		return "downloading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorKind classifies a failed load for caller-level messaging.
type ErrorKind int

// Error kinds surfaced in the Failed phase.
const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindDownloadFailed
	KindNetworkUnavailable
	KindTimeout
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDownloadFailed:
		return "download_failed"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// State is one position of the loader state machine. Progress is meaningful
// in PhaseDownloading, Resource in PhaseReady, Kind and Detail in PhaseFailed.
type State struct {
	Phase    Phase           `json:"phase"`
	Progress float64         `json:"progress,omitempty"`
	Resource *media.Playable `json:"resource,omitempty"`
	Kind     ErrorKind       `json:"error_kind,omitempty"`
	Detail   string          `json:"detail,omitempty"`
}

// Terminal reports whether the state ends a request.
func (s State) Terminal() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseFailed
}

// Loader drives at most one in-flight playable fetch at a time. A new Load
// supersedes the previous request; a superseded or cancelled request emits no
// terminal notification. Prepared resources are looked up in (and inserted
// into) the playable cache, which the loader owns and serializes.
type Loader struct {
	store media.AssetStore

	mu        sync.Mutex
	playables *cache.LRU[*media.Playable]
	state     State
	cancel    context.CancelFunc
	gen       uint64

	listeners []chan State
}

// New creates a Loader with a playable cache of the given capacity.
// A capacity <= 0 uses the default.
func New(store media.AssetStore, cacheCapacity int) *Loader {
	if cacheCapacity <= 0 {
		cacheCapacity = constants.DefaultPlayableCacheCapacity
	}
	return &Loader{
		store:     store,
		playables: cache.NewLRU[*media.Playable](cacheCapacity),
		state:     State{Phase: PhaseIdle},
	}
}

// State returns the current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Subscribe returns a channel receiving every state transition. Slow
// subscribers miss transitions rather than blocking the loader.
func (l *Loader) Subscribe() chan State {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan State, constants.EventChannelBuffer)
	l.listeners = append(l.listeners, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (l *Loader) Unsubscribe(ch chan State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, listener := range l.listeners {
		if listener == ch {
			l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Load starts fetching the playable resource for item, superseding any
// in-flight request on this loader. A cached resource resolves immediately to
// Ready without touching the store. A timeout of zero means no deadline.
func (l *Loader) Load(item media.Item, timeout time.Duration) {
	l.mu.Lock()
	l.supersedeLocked()
	gen := l.gen
	l.setStateLocked(State{Phase: PhaseLoading})

	if p, ok := l.playables.Get(item.ID); ok {
		l.setStateLocked(State{Phase: PhaseReady, Resource: p})
		l.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.mu.Unlock()

	go l.run(ctx, gen, item, timeout)
}

// Cancel aborts any in-flight fetch and returns the loader to Idle. The
// aborted request emits no terminal notification.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supersedeLocked()
	l.setStateLocked(State{Phase: PhaseIdle})
}

// ClearCache drops all cached playables.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.playables.Clear()
}

// supersedeLocked invalidates the in-flight request, actively aborting its
// fetch. Caller must hold l.mu.
func (l *Loader) supersedeLocked() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}

// setStateLocked records and broadcasts a transition. Caller must hold l.mu.
func (l *Loader) setStateLocked(s State) {
	l.state = s
	for _, listener := range l.listeners {
		select {
		case listener <- s:
		default:
			// Listener buffer full, skip.
		}
	}
}

func (l *Loader) run(ctx context.Context, gen uint64, item media.Item, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	onProgress := func(p float64) {
		if p >= 1.0 {
			return
		}
		l.transition(gen, State{Phase: PhaseDownloading, Progress: p})
	}

	results, err := l.store.FetchPlayable(ctx, item, onProgress)
	if err != nil {
		l.fail(gen, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			l.fail(gen, ctx.Err())
			return
		case res, ok := <-results:
			if !ok {
				l.fail(gen, media.ErrNotFound)
				return
			}
			if res.Err != nil {
				l.fail(gen, res.Err)
				return
			}
			if res.Degraded {
				// Placeholder delivery; keep waiting for the real resource.
				continue
			}

			// Metadata preload is best-effort.
			_ = l.store.LoadMetadata(ctx, res.Playable)

			l.mu.Lock()
			if gen == l.gen {
				l.playables.Put(item.ID, res.Playable)
				l.cancel = nil
				l.setStateLocked(State{Phase: PhaseReady, Resource: res.Playable})
			}
			l.mu.Unlock()
			return
		}
	}
}

// transition applies a non-terminal state if the request is still current.
func (l *Loader) transition(gen uint64, s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.setStateLocked(s)
}

// fail records a classified terminal error if the request is still current.
func (l *Loader) fail(gen uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.cancel = nil
	l.setStateLocked(State{Phase: PhaseFailed, Kind: Classify(err), Detail: err.Error()})
}

// Classify maps an error to the loader's error kinds.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, media.ErrNotFound):
		return KindNotFound
	case errors.Is(err, media.ErrDownloadFailed):
		return KindDownloadFailed
	case errors.Is(err, media.ErrNetworkUnavailable):
		return KindNetworkUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindUnknown
	}
}
