// Package browse implements the consuming-side browsing state machine:
// paged or accumulating release lists over the collection API, debounced
// search input, URL state mapping, and scroll snapshots.
package browse

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/vinylroom/vinylroom-server/internal/domain"
	"github.com/vinylroom/vinylroom-server/internal/errors"
)

// ItemsPerPage is the page size the browsing views request.
const ItemsPerPage = 48

// Accumulated batches are capped to bound memory. The cap starts low
// and the user can raise it in steps up to a hard ceiling.
const (
	initialBatchCap   = 10
	batchCapIncrement = 5
	maxBatchCap       = 20
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle           State = "idle"
	StateLoadingInitial State = "loading-initial"
	StateReady          State = "ready"
	StateLoadingMore    State = "loading-more"
	StateChangingPage   State = "changing-page"
)

// DisplayMode selects the interaction model.
type DisplayMode string

const (
	// ModePager replaces the list on every page change.
	ModePager DisplayMode = "pager"
	// ModeInfinite appends pages to an accumulated list.
	ModeInfinite DisplayMode = "infinite"
)

// Filters is the active filter set. Changing any field resets browsing
// to page one.
type Filters struct {
	Mode   domain.Mode
	Folder int64
	Sort   domain.SortField
	Order  domain.SortOrder
	Query  string
}

// Result is one fetched page.
type Result struct {
	Releases []domain.Release
	Page     int
	Pages    int
	Items    int
}

// Fetcher loads one page of the collection under the given filters.
type Fetcher interface {
	FetchPage(ctx context.Context, filters Filters, page, perPage int) (*Result, error)
}

// ErrBatchCapReached signals that infinite loading is blocked until the
// user raises the cap.
var ErrBatchCapReached = stderrors.New("browse: batch cap reached")

// Controller drives one browsing view. A new request for the same
// logical slot supersedes any in-flight one: the newest request wins
// and a superseded result never overwrites state. All methods are safe
// for concurrent use.
type Controller struct {
	fetcher   Fetcher
	snapshots *SnapshotStore
	logger    *slog.Logger

	mu          sync.Mutex
	displayMode DisplayMode
	state       State
	filters     Filters
	releases    []domain.Release
	seen        map[int64]struct{}
	page        int
	totalPages  int
	totalItems  int
	batches     int
	batchCap    int
	generation  uint64
	cancel      context.CancelFunc
}

// NewController creates an idle controller in pager mode.
func NewController(fetcher Fetcher, snapshots *SnapshotStore, logger *slog.Logger) *Controller {
	return &Controller{
		fetcher:     fetcher,
		snapshots:   snapshots,
		logger:      logger,
		displayMode: ModePager,
		state:       StateIdle,
		filters:     Filters{Mode: domain.ModeDemo, Sort: domain.SortAdded, Order: domain.OrderDesc},
		seen:        make(map[int64]struct{}),
		page:        1,
		batchCap:    initialBatchCap,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Filters returns the active filter set.
func (c *Controller) Filters() Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Releases returns the currently displayed releases.
func (c *Controller) Releases() []domain.Release {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Release, len(c.releases))
	copy(out, c.releases)
	return out
}

// Page returns the current page and the known totals.
func (c *Controller) Page() (page, pages, items int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page, c.totalPages, c.totalItems
}

// SetDisplayMode switches between pager and infinite. Switching resets
// accumulated state and reloads from page one.
func (c *Controller) SetDisplayMode(ctx context.Context, mode DisplayMode) error {
	c.mu.Lock()
	if c.displayMode == mode {
		c.mu.Unlock()
		return nil
	}
	c.displayMode = mode
	c.mu.Unlock()
	return c.Load(ctx)
}

// Load performs the initial load for the active filters.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.resetListLocked()
	fetchCtx, gen := c.beginLocked(ctx, StateLoadingInitial)
	filters := c.filters
	c.mu.Unlock()

	return c.fetch(fetchCtx, gen, filters, 1, true)
}

// GoToPage replaces the list with the given page (pager mode).
func (c *Controller) GoToPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	fetchCtx, gen := c.beginLocked(ctx, StateChangingPage)
	filters := c.filters
	c.mu.Unlock()

	return c.fetch(fetchCtx, gen, filters, page, true)
}

// LoadMore appends the next page (infinite mode). Overlapping calls are
// no-ops while one is in flight; once the batch cap is reached it
// returns ErrBatchCapReached until RaiseBatchCap is called.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.displayMode != ModeInfinite || c.state != StateReady {
		c.mu.Unlock()
		return nil
	}
	if c.page >= c.totalPages {
		c.mu.Unlock()
		return nil
	}
	if c.batches >= c.batchCap {
		c.mu.Unlock()
		return ErrBatchCapReached
	}
	next := c.page + 1
	fetchCtx, gen := c.beginLocked(ctx, StateLoadingMore)
	filters := c.filters
	c.mu.Unlock()

	return c.fetch(fetchCtx, gen, filters, next, false)
}

// RaiseBatchCap grants another increment of batches, up to the hard
// ceiling. It returns the new cap.
func (c *Controller) RaiseBatchCap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchCap += batchCapIncrement
	if c.batchCap > maxBatchCap {
		c.batchCap = maxBatchCap
	}
	return c.batchCap
}

// ApplyFilters installs a new filter set: any in-flight request is
// superseded, accumulated state and snapshots are discarded, and a
// fresh initial load runs.
func (c *Controller) ApplyFilters(ctx context.Context, filters Filters) error {
	c.mu.Lock()
	if filters == c.filters {
		c.mu.Unlock()
		return nil
	}
	if c.snapshots != nil {
		c.snapshots.Discard(c.filters)
	}
	c.filters = filters
	c.resetListLocked()
	fetchCtx, gen := c.beginLocked(ctx, StateLoadingInitial)
	c.mu.Unlock()

	return c.fetch(fetchCtx, gen, filters, 1, true)
}

// SaveSnapshot persists the accumulated state before navigating away
// (infinite mode only).
func (c *Controller) SaveSnapshot(scrollOffset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshots == nil || c.displayMode != ModeInfinite {
		return
	}
	c.snapshots.Save(c.filters, Snapshot{
		Releases:     append([]domain.Release(nil), c.releases...),
		Page:         c.page,
		TotalPages:   c.totalPages,
		TotalItems:   c.totalItems,
		Batches:      c.batches,
		ScrollOffset: scrollOffset,
	})
}

// RestoreSnapshot reinstates a saved snapshot if one matches the active
// filters exactly. It returns the scroll offset to restore and whether
// a snapshot was applied; on a miss the caller should Load fresh.
func (c *Controller) RestoreSnapshot() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshots == nil || c.displayMode != ModeInfinite {
		return 0, false
	}
	snap, ok := c.snapshots.Restore(c.filters)
	if !ok {
		return 0, false
	}

	c.releases = snap.Releases
	c.seen = make(map[int64]struct{}, len(snap.Releases))
	for _, r := range snap.Releases {
		c.seen[r.InstanceID] = struct{}{}
	}
	c.page = snap.Page
	c.totalPages = snap.TotalPages
	c.totalItems = snap.TotalItems
	c.batches = snap.Batches
	c.state = StateReady
	return snap.ScrollOffset, true
}

// beginLocked supersedes any in-flight request and opens a new one
// scoped under the caller's context.
func (c *Controller) beginLocked(ctx context.Context, state State) (context.Context, uint64) {
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	c.state = state
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return fetchCtx, c.generation
}

func (c *Controller) resetListLocked() {
	c.releases = nil
	c.seen = make(map[int64]struct{})
	c.page = 1
	c.totalPages = 0
	c.totalItems = 0
	c.batches = 0
	c.batchCap = initialBatchCap
}

// fetch runs one page request and applies the result unless a newer
// request has started since. Cancellation is swallowed.
func (c *Controller) fetch(ctx context.Context, gen uint64, filters Filters, page int, replace bool) error {
	result, err := c.fetcher.FetchPage(ctx, filters, page, ItemsPerPage)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// Superseded: a newer request owns the state now.
		return nil
	}

	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return nil
		}
		c.state = StateReady
		c.logger.Warn("page fetch failed", "page", page, "error", err)
		return errors.Wrap(err, errors.CodeUpstream, "failed to load collection")
	}

	if replace {
		c.releases = result.Releases
		c.seen = make(map[int64]struct{}, len(result.Releases))
		for _, r := range result.Releases {
			c.seen[r.InstanceID] = struct{}{}
		}
		c.batches = 1
	} else {
		for _, r := range result.Releases {
			if _, dup := c.seen[r.InstanceID]; dup {
				continue
			}
			c.seen[r.InstanceID] = struct{}{}
			c.releases = append(c.releases, r)
		}
		c.batches++
	}

	c.page = result.Page
	c.totalPages = result.Pages
	c.totalItems = result.Items
	c.state = StateReady
	return nil
}
