package browse

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinylroom/vinylroom-server/internal/domain"
)

func rel(instanceID int64, title string) domain.Release {
	return domain.Release{
		ID:         instanceID,
		InstanceID: instanceID,
		BasicInformation: domain.BasicInformation{
			ID:    instanceID,
			Title: title,
		},
	}
}

// pagedFetcher serves a fixed collection in pages, counting calls.
type pagedFetcher struct {
	mu       sync.Mutex
	releases []domain.Release
	calls    int
}

func (f *pagedFetcher) FetchPage(ctx context.Context, filters Filters, page, perPage int) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(f.releases) {
		start = len(f.releases)
	}
	if end > len(f.releases) {
		end = len(f.releases)
	}
	pages := (len(f.releases) + perPage - 1) / perPage
	return &Result{
		Releases: append([]domain.Release(nil), f.releases[start:end]...),
		Page:     page,
		Pages:    pages,
		Items:    len(f.releases),
	}, nil
}

func (f *pagedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// funcFetcher delegates to a per-test function.
type funcFetcher struct {
	fn func(ctx context.Context, filters Filters, page, perPage int) (*Result, error)
}

func (f *funcFetcher) FetchPage(ctx context.Context, filters Filters, page, perPage int) (*Result, error) {
	return f.fn(ctx, filters, page, perPage)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func manyReleases(n int) []domain.Release {
	out := make([]domain.Release, 0, n)
	for i := range n {
		out = append(out, rel(int64(i+1), "Release"))
	}
	return out
}

func TestControllerInitialLoad(t *testing.T) {
	fetcher := &pagedFetcher{releases: manyReleases(100)}
	c := NewController(fetcher, NewSnapshotStore(), testLogger())

	assert.Equal(t, StateIdle, c.State())
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, StateReady, c.State())
	assert.Len(t, c.Releases(), ItemsPerPage)

	page, pages, items := c.Page()
	assert.Equal(t, 1, page)
	assert.Equal(t, 3, pages)
	assert.Equal(t, 100, items)
}

func TestControllerPagerReplacesList(t *testing.T) {
	fetcher := &pagedFetcher{releases: manyReleases(100)}
	c := NewController(fetcher, NewSnapshotStore(), testLogger())
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.GoToPage(context.Background(), 3))

	got := c.Releases()
	assert.Len(t, got, 4)
	assert.Equal(t, int64(97), got[0].InstanceID)

	page, _, _ := c.Page()
	assert.Equal(t, 3, page)
}

func TestControllerInfiniteAppendsAndDedupes(t *testing.T) {
	fetcher := &pagedFetcher{releases: manyReleases(100)}
	c := NewController(fetcher, NewSnapshotStore(), testLogger())
	require.NoError(t, c.SetDisplayMode(context.Background(), ModeInfinite))

	// Page two overlaps page one, as happens when items land upstream
	// between requests and shift the windows.
	overlap := manyReleases(90)[39:]
	c.fetcher = &funcFetcher{fn: func(ctx context.Context, filters Filters, page, perPage int) (*Result, error) {
		return &Result{Releases: overlap, Page: page, Pages: 3, Items: 100}, nil
	}}
	require.NoError(t, c.LoadMore(context.Background()))

	got := c.Releases()
	assert.Len(t, got, 90)
	seen := map[int64]bool{}
	for _, r := range got {
		assert.False(t, seen[r.InstanceID], "instance %d appended twice", r.InstanceID)
		seen[r.InstanceID] = true
	}
}

func TestControllerLoadMoreInFlightLock(t *testing.T) {
	fetcher := &pagedFetcher{releases: manyReleases(200)}
	c := NewController(fetcher, NewSnapshotStore(), testLogger())
	require.NoError(t, c.SetDisplayMode(context.Background(), ModeInfinite))
	base := fetcher.callCount()

	release := make(chan struct{})
	entered := make(chan struct{})
	slow := &funcFetcher{fn: func(ctx context.Context, filters Filters, page, perPage int) (*Result, error) {
		close(entered)
		<-release
		return fetcher.FetchPage(ctx, filters, page, perPage)
	}}
	c.fetcher = slow

	done := make(chan error, 1)
	go func() { done <- c.LoadMore(context.Background()) }()
	<-entered

	// Not ready while one is in flight, so this is a no-op.
	assert.NoError(t, c.LoadMore(context.Background()))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, base+1, fetcher.callCount())
}

func TestControllerBatchCap(t *testing.T) {
	fetcher := &pagedFetcher{releases: manyReleases(ItemsPerPage * 30)}
	c := NewController(fetcher, NewSnapshotStore(), testLogger())
	require.NoError(t, c.SetDisplayMode(context.Background(), ModeInfinite))

	for range initialBatchCap - 1 {
		require.NoError(t, c.LoadMore(context.Background()))
	}
	assert.ErrorIs(t, c.LoadMore(context.Background()), ErrBatchCapReached)

	assert.Equal(t, initialBatchCap+batchCapIncrement, c.RaiseBatchCap())
	require.NoError(t, c.LoadMore(context.Background()))

	for range 10 {
		c.RaiseBatchCap()
	}
	c.mu.Lock()
	got := c.batchCap
	c.mu.Unlock()
	assert.Equal(t, maxBatchCap, got)
}

func TestControllerFilterChangeSupersedesInFlight(t *testing.T) {
	started := make(chan struct{})
	fastResult := &Result{Releases: []domain.Release{rel(2, "Fresh")}, Page: 1, Pages: 1, Items: 1}

	var once sync.Once
	fetcher := &funcFetcher{fn: func(ctx context.Context, filters Filters, page, perPage int) (*Result, error) {
		if filters.Folder == 0 {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return fastResult, nil
	}}

	c := NewController(fetcher, NewSnapshotStore(), testLogger())

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	<-started

	filters := c.Filters()
	filters.Folder = 3
	require.NoError(t, c.ApplyFilters(context.Background(), filters))

	// The superseded request must be swallowed, not surfaced.
	assert.NoError(t, <-done)

	got := c.Releases()
	require.Len(t, got, 1)
	assert.Equal(t, "Fresh", got[0].BasicInformation.Title)
	assert.Equal(t, StateReady, c.State())
}

func TestControllerStaleResultNeverOverwrites(t *testing.T) {
	// First request ignores cancellation and returns late; the
	// generation check must still discard its payload.
	proceed := make(chan struct{})
	started := make(chan struct{})
	fetcher := &funcFetcher{fn: func(ctx context.Context, filters Filters, page, perPage int) (*Result, error) {
		if filters.Query == "old" {
			close(started)
			<-proceed
			return &Result{Releases: []domain.Release{rel(1, "Stale")}, Page: 1, Pages: 1, Items: 1}, nil
		}
		return &Result{Releases: []domain.Release{rel(2, "Fresh")}, Page: 1, Pages: 1, Items: 1}, nil
	}}

	c := NewController(fetcher, NewSnapshotStore(), testLogger())
	filters := c.Filters()
	filters.Query = "old"
	c.mu.Lock()
	c.filters = filters
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	<-started

	filters.Query = "new"
	require.NoError(t, c.ApplyFilters(context.Background(), filters))

	close(proceed)
	assert.NoError(t, <-done)

	got := c.Releases()
	require.Len(t, got, 1)
	assert.Equal(t, "Fresh", got[0].BasicInformation.Title)
}

func TestDebouncerShortQueryNeverDispatches(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(func(string) { calls.Add(1) })
	d.delay = 10 * time.Millisecond
	d.maxWait = 40 * time.Millisecond

	d.Update("a")
	d.Update(" b ")
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncerDispatchesAfterQuiet(t *testing.T) {
	var mu sync.Mutex
	var got []string
	d := NewDebouncer(func(q string) {
		mu.Lock()
		got = append(got, q)
		mu.Unlock()
	})
	d.delay = 10 * time.Millisecond
	d.maxWait = 200 * time.Millisecond

	d.Update("c")
	d.Update("co")
	d.Update("coltrane")
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"coltrane"}, got)
	mu.Unlock()

	// Same value again is suppressed.
	d.Update("coltrane")
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"coltrane"}, got)
	mu.Unlock()
}

func TestDebouncerMaxWaitFiresDuringTyping(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(func(string) { calls.Add(1) })
	d.delay = 30 * time.Millisecond
	d.maxWait = 80 * time.Millisecond

	// Keep typing faster than the quiet delay.
	for i := 0; i < 10; i++ {
		d.Update("miles davis")
		time.Sleep(20 * time.Millisecond)
	}

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	d.Stop()
}

func TestDebouncerClearingResetsToEmpty(t *testing.T) {
	var mu sync.Mutex
	var got []string
	d := NewDebouncer(func(q string) {
		mu.Lock()
		got = append(got, q)
		mu.Unlock()
	})
	d.delay = 10 * time.Millisecond
	d.maxWait = 200 * time.Millisecond

	d.Update("coltrane")
	time.Sleep(30 * time.Millisecond)
	d.Update("")
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"coltrane", ""}, got)
	mu.Unlock()
}

func TestEncodeQueryOmitsDefaults(t *testing.T) {
	st := URLState{
		Filters: Filters{Mode: domain.ModeDemo, Sort: domain.SortAdded, Order: domain.OrderDesc},
		Page:    1,
	}
	assert.Empty(t, EncodeQuery(st))

	st = URLState{
		Filters: Filters{
			Mode:   domain.ModeUser,
			Folder: 3,
			Sort:   domain.SortArtist,
			Order:  domain.OrderAsc,
			Query:  "blue train",
		},
		Page: 2,
	}
	values := EncodeQuery(st)
	assert.Equal(t, "user", values.Get("mode"))
	assert.Equal(t, "3", values.Get("folder"))
	assert.Equal(t, "artist", values.Get("sort"))
	assert.Equal(t, "asc", values.Get("order"))
	assert.Equal(t, "blue train", values.Get("search"))
	assert.Equal(t, "2", values.Get("page"))
}

func TestDecodeQueryRoundTrip(t *testing.T) {
	st := URLState{
		Filters: Filters{
			Mode:   domain.ModeUser,
			Folder: 7,
			Sort:   domain.SortYear,
			Order:  domain.OrderAsc,
			Query:  "kind of blue",
		},
		Page: 4,
	}
	assert.Equal(t, st, DecodeQuery(EncodeQuery(st)))
}

func TestDecodeQueryFallsBackOnGarbage(t *testing.T) {
	values := url.Values{}
	values.Set("sort", "rating")
	values.Set("order", "sideways")
	values.Set("folder", "not-a-number")
	values.Set("page", "-2")

	st := DecodeQuery(values)
	assert.Equal(t, domain.ModeDemo, st.Filters.Mode)
	assert.Equal(t, domain.SortAdded, st.Filters.Sort)
	assert.Equal(t, domain.OrderDesc, st.Filters.Order)
	assert.Equal(t, int64(0), st.Filters.Folder)
	assert.Equal(t, 1, st.Page)
}

func TestURLSyncSuppressesOwnWrites(t *testing.T) {
	var us URLSync
	st := URLState{Filters: Filters{Mode: domain.ModeDemo, Folder: 3, Sort: domain.SortAdded, Order: domain.OrderDesc}, Page: 1}

	values := us.Write(st)
	_, external := us.HandleNavigation(values)
	assert.False(t, external, "own write echoed back into state")

	got, external := us.HandleNavigation(values)
	assert.True(t, external)
	assert.Equal(t, int64(3), got.Filters.Folder)
}

func TestSnapshotRestoreRequiresExpectationAndExactMatch(t *testing.T) {
	store := NewSnapshotStore()
	filters := Filters{Mode: domain.ModeDemo, Folder: 3, Sort: domain.SortAdded, Order: domain.OrderDesc}
	store.Save(filters, Snapshot{Page: 2, ScrollOffset: 1200})

	// Without an announced return, the snapshot is dropped.
	_, ok := store.Restore(filters)
	assert.False(t, ok)

	store.Save(filters, Snapshot{Page: 2, ScrollOffset: 1200})
	store.ExpectRestore()
	other := filters
	other.Folder = 4
	_, ok = store.Restore(other)
	assert.False(t, ok, "snapshot restored under different filters")

	store.Save(filters, Snapshot{Page: 2, ScrollOffset: 1200})
	store.ExpectRestore()
	snap, ok := store.Restore(filters)
	require.True(t, ok)
	assert.Equal(t, 1200, snap.ScrollOffset)

	// A restore is single-use.
	store.ExpectRestore()
	_, ok = store.Restore(filters)
	assert.False(t, ok)
}

func TestSnapshotStoreConcurrentAccess(t *testing.T) {
	store := NewSnapshotStore()
	filters := Filters{Mode: domain.ModeDemo, Sort: domain.SortAdded, Order: domain.OrderDesc}
	store.Save(filters, Snapshot{Page: 1})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.ExpectRestore()
		}()
		go func() {
			defer wg.Done()
			store.Restore(filters)
		}()
	}
	wg.Wait()
}

func TestControllerSnapshotRoundTrip(t *testing.T) {
	fetcher := &pagedFetcher{releases: manyReleases(200)}
	store := NewSnapshotStore()
	c := NewController(fetcher, store, testLogger())
	require.NoError(t, c.SetDisplayMode(context.Background(), ModeInfinite))
	require.NoError(t, c.LoadMore(context.Background()))
	require.NoError(t, c.LoadMore(context.Background()))

	wantReleases := len(c.Releases())
	c.SaveSnapshot(2400)

	// Simulate navigating away and back.
	require.NoError(t, c.Load(context.Background()))
	assert.Len(t, c.Releases(), ItemsPerPage)

	store.ExpectRestore()
	offset, ok := c.RestoreSnapshot()
	require.True(t, ok)
	assert.Equal(t, 2400, offset)
	assert.Len(t, c.Releases(), wantReleases)
	page, _, _ := c.Page()
	assert.Equal(t, 3, page)
}
