// internal/draft/store_test.go
package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend down")

// fakeTransport is an in-memory Transport. Hooks let tests block or fail calls.
type fakeTransport struct {
	mu        sync.Mutex
	data      Collection
	saves     []Collection
	fetchErr  error
	oneErr    error
	saveErr   error
	saveGate  chan struct{} // when set, SaveAgentConfig waits for it
	saveStart chan struct{} // signalled when a save begins
	oneGate   map[string]chan struct{}
}

func newFakeTransport(data Collection) *fakeTransport {
	return &fakeTransport{data: data.Clone(), oneGate: map[string]chan struct{}{}}
}

func (f *fakeTransport) FetchAgentConfig(ctx context.Context) (Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	// hand out the live map to catch aliasing bugs in the store
	return f.data, nil
}

func (f *fakeTransport) FetchAgent(ctx context.Context, key string) (Record, error) {
	f.mu.Lock()
	gate := f.oneGate[key]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.oneErr != nil {
		return nil, f.oneErr
	}
	rec, ok := f.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	out := rec.Clone()
	out["id"] = key
	return out, nil
}

func (f *fakeTransport) SaveAgentConfig(ctx context.Context, all Collection) error {
	if f.saveStart != nil {
		f.saveStart <- struct{}{}
	}
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, all)
	f.data = all
	return nil
}

func seed() Collection {
	return Collection{
		"a1":  {"description": "first agent", "tags": []any{"x", "y"}, "settings": map[string]any{"temperature": 0.2}},
		"b22": {"description": "second agent"},
	}
}

func loadedStore(t *testing.T) (*Store, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport(seed())
	store := NewStore(transport)
	require.NoError(t, store.FetchAll(context.Background()))
	return store, transport
}

func TestFetchAllLoadsIndependentCopies(t *testing.T) {
	transport := newFakeTransport(seed())
	store := NewStore(transport)
	assert.Equal(t, StateEmpty, store.State())

	require.NoError(t, store.FetchAll(context.Background()))
	assert.Equal(t, StateLoaded, store.State())
	assert.False(t, store.IsDirty())
	assert.Equal(t, seed(), store.Working())
	assert.Equal(t, seed(), store.Committed())

	// mutating the transport's map must not leak into the store
	transport.data["a1"]["description"] = "changed behind our back"
	transport.data["a1"]["settings"].(map[string]any)["temperature"] = 0.9
	assert.Equal(t, seed(), store.Working())
	assert.Equal(t, seed(), store.Committed())
}

func TestFetchAllFailureKeepsState(t *testing.T) {
	store, transport := loadedStore(t)
	require.NoError(t, store.Update("a1", Record{"description": "edited"}))

	transport.fetchErr = errBackendDown
	err := store.FetchAll(context.Background())

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, StateLoaded, store.State())
	assert.True(t, store.IsDirty())
	rec, _ := store.Get("a1")
	assert.Equal(t, "edited", rec["description"])
	assert.Equal(t, seed(), store.Committed())
}

func TestFetchAllFailureFromEmpty(t *testing.T) {
	transport := newFakeTransport(seed())
	transport.fetchErr = errBackendDown
	store := NewStore(transport)

	assert.Error(t, store.FetchAll(context.Background()))
	assert.Equal(t, StateEmpty, store.State())
	assert.Empty(t, store.Working())
}

func TestDiscardAfterFetchIsIdentity(t *testing.T) {
	store, _ := loadedStore(t)
	before := store.Working()

	store.DiscardChanges()

	assert.Equal(t, before, store.Working())
	assert.False(t, store.IsDirty())
}

func TestMutationsSetDirtyUntilSaveOrDiscard(t *testing.T) {
	mutations := map[string]func(s *Store, round int) error{
		"create": func(s *Store, round int) error {
			return s.Create(fmt.Sprintf("c%03d", round), Record{"description": "new"})
		},
		"update": func(s *Store, round int) error {
			return s.Update("a1", Record{"description": fmt.Sprint("round ", round)})
		},
		"delete":        func(s *Store, round int) error { s.Delete("b22"); return nil },
		"delete absent": func(s *Store, round int) error { s.Delete("zzz"); return nil },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			store, _ := loadedStore(t)
			require.NoError(t, mutate(store, 1))
			assert.True(t, store.IsDirty())

			// further reads do not clear it
			_ = store.Working()
			_, _ = store.Get("a1")
			assert.True(t, store.IsDirty())

			require.NoError(t, store.SaveChanges(context.Background()))
			assert.False(t, store.IsDirty())

			require.NoError(t, mutate(store, 2))
			assert.True(t, store.IsDirty())
			store.DiscardChanges()
			assert.False(t, store.IsDirty())
		})
	}
}

func TestSaveThenDiscardKeepsContent(t *testing.T) {
	store, transport := loadedStore(t)
	require.NoError(t, store.Create("c333", Record{"description": "third"}))
	store.Delete("b22")

	require.NoError(t, store.SaveChanges(context.Background()))
	afterSave := store.Working()

	store.DiscardChanges()

	assert.Equal(t, afterSave, store.Working())
	assert.False(t, store.IsDirty())
	assert.Equal(t, afterSave, store.Committed())
	require.Len(t, transport.saves, 1)
	assert.Equal(t, afterSave, transport.saves[0])
}

func TestSaveSendsFullCollection(t *testing.T) {
	store, transport := loadedStore(t)
	require.NoError(t, store.Update("a1", Record{"description": "only this changed"}))

	require.NoError(t, store.SaveChanges(context.Background()))

	require.Len(t, transport.saves, 1)
	sent := transport.saves[0]
	assert.Equal(t, []string{"a1", "b22"}, sent.Keys())
	assert.Equal(t, Record{"description": "second agent"}, sent["b22"])

	// the transport's copy is not shared with the store
	sent["a1"]["description"] = "mutated after save"
	rec, _ := store.Get("a1")
	assert.Equal(t, "only this changed", rec["description"])
}

func TestSaveFailureKeepsDirtyAndAllowsRetry(t *testing.T) {
	store, transport := loadedStore(t)
	require.NoError(t, store.Update("a1", Record{"description": "pending"}))

	transport.saveErr = errBackendDown
	err := store.SaveChanges(context.Background())
	assert.ErrorIs(t, err, errBackendDown)
	assert.True(t, store.IsDirty())
	assert.False(t, store.Saving())
	rec, _ := store.Get("a1")
	assert.Equal(t, "pending", rec["description"])
	assert.Equal(t, seed(), store.Committed())

	transport.saveErr = nil
	require.NoError(t, store.SaveChanges(context.Background()))
	assert.False(t, store.IsDirty())
	assert.Equal(t, "pending", store.Committed()["a1"]["description"])
}

func TestConcurrentSaveIsRejected(t *testing.T) {
	store, transport := loadedStore(t)
	transport.saveGate = make(chan struct{})
	transport.saveStart = make(chan struct{}, 1)
	require.NoError(t, store.Create("c333", Record{"description": "third"}))

	done := make(chan error, 1)
	go func() { done <- store.SaveChanges(context.Background()) }()
	<-transport.saveStart

	assert.True(t, store.Saving())
	assert.ErrorIs(t, store.SaveChanges(context.Background()), ErrSaveInProgress)

	close(transport.saveGate)
	require.NoError(t, <-done)
	assert.False(t, store.Saving())
	assert.Len(t, transport.saves, 1)
}

func TestEditDuringSaveStaysDirty(t *testing.T) {
	store, transport := loadedStore(t)
	transport.saveGate = make(chan struct{})
	transport.saveStart = make(chan struct{}, 1)
	require.NoError(t, store.Update("a1", Record{"description": "saved"}))

	done := make(chan error, 1)
	go func() { done <- store.SaveChanges(context.Background()) }()
	<-transport.saveStart
	require.NoError(t, store.Update("b22", Record{"description": "edited mid-save"}))
	close(transport.saveGate)
	require.NoError(t, <-done)

	assert.True(t, store.IsDirty())
	assert.Equal(t, "saved", store.Committed()["a1"]["description"])
	assert.Equal(t, "second agent", store.Committed()["b22"]["description"])
	assert.Equal(t, "edited mid-save", store.Working()["b22"]["description"])
}

func TestCreateDuplicateIsRejected(t *testing.T) {
	store, _ := loadedStore(t)

	err := store.Create("a1", Record{"description": "imposter"})
	assert.ErrorIs(t, err, ErrRecordExists)
	rec, _ := store.Get("a1")
	assert.Equal(t, "first agent", rec["description"])
	assert.False(t, store.IsDirty())

	// keys are case sensitive
	assert.NoError(t, store.Create("A1x", Record{}))
}

func TestUpdateMissingDoesNotCreate(t *testing.T) {
	store, _ := loadedStore(t)

	assert.ErrorIs(t, store.Update("ghost", Record{"description": "x"}), ErrRecordNotFound)
	assert.False(t, store.Has("ghost"))
	assert.False(t, store.IsDirty())
}

func TestUpdateThenDiscardReverts(t *testing.T) {
	store, _ := loadedStore(t)

	require.NoError(t, store.Update("a1", Record{"description": "new"}))
	assert.Equal(t, "new", store.Working()["a1"]["description"])
	assert.Equal(t, "first agent", store.Committed()["a1"]["description"])
	assert.True(t, store.Differs())

	store.DiscardChanges()
	assert.Equal(t, "first agent", store.Working()["a1"]["description"])
	assert.False(t, store.Differs())
}

func TestDiscardDropsCreatedAndRestoresDeleted(t *testing.T) {
	store, _ := loadedStore(t)
	require.NoError(t, store.Create("c333", Record{"description": "temp"}))
	store.Delete("a1")

	store.DiscardChanges()

	assert.False(t, store.Has("c333"))
	assert.True(t, store.Has("a1"))
	assert.Equal(t, seed(), store.Working())
}

func TestBodiesAreCopiedOnWrite(t *testing.T) {
	store, _ := loadedStore(t)
	body := Record{"tags": []any{"a"}}
	require.NoError(t, store.Create("c333", body))

	body["tags"].([]any)[0] = "mutated"
	rec, _ := store.Get("c333")
	assert.Equal(t, []any{"a"}, rec["tags"])

	rec["tags"] = nil
	again, _ := store.Get("c333")
	assert.Equal(t, []any{"a"}, again["tags"])
}

func TestFetchOneSelectsWithoutTouchingCollection(t *testing.T) {
	store, _ := loadedStore(t)
	require.NoError(t, store.Update("a1", Record{"description": "local edit"}))

	rec, err := store.FetchOne(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", rec["id"])
	assert.Equal(t, "first agent", rec["description"])

	key, selected, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, "a1", key)
	assert.Equal(t, rec, selected)

	assert.Equal(t, "local edit", store.Working()["a1"]["description"])
	assert.True(t, store.IsDirty())
}

func TestFetchOneFailureClearsSelection(t *testing.T) {
	store, transport := loadedStore(t)
	_, err := store.FetchOne(context.Background(), "a1")
	require.NoError(t, err)

	transport.oneErr = errBackendDown
	_, err = store.FetchOne(context.Background(), "b22")
	assert.ErrorIs(t, err, errBackendDown)

	_, _, ok := store.Selected()
	assert.False(t, ok)
}

func TestFetchOneDropsLateResponse(t *testing.T) {
	store, transport := loadedStore(t)
	gate := make(chan struct{})
	transport.oneGate["a1"] = gate

	slow := make(chan error, 1)
	go func() {
		_, err := store.FetchOne(context.Background(), "a1")
		slow <- err
	}()

	// wait until the slow request has registered itself, then supersede it
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.selectedToken != ""
	}, time.Second, time.Millisecond)

	rec, err := store.FetchOne(context.Background(), "b22")
	require.NoError(t, err)
	assert.Equal(t, "b22", rec["id"])

	close(gate)
	assert.ErrorIs(t, <-slow, ErrStaleResponse)

	key, _, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, "b22", key)
}

func TestClearSelectionInvalidatesPendingFetch(t *testing.T) {
	store, transport := loadedStore(t)
	gate := make(chan struct{})
	transport.oneGate["a1"] = gate

	pending := make(chan error, 1)
	go func() {
		_, err := store.FetchOne(context.Background(), "a1")
		pending <- err
	}()
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.selectedToken != ""
	}, time.Second, time.Millisecond)

	store.ClearSelection()
	close(gate)

	assert.ErrorIs(t, <-pending, ErrStaleResponse)
	_, _, ok := store.Selected()
	assert.False(t, ok)
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingObserver) ObserveTransport(collection, op string, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.ops = append(r.ops, collection+":"+op+":"+outcome)
}

func TestObserverSeesTransportCalls(t *testing.T) {
	transport := newFakeTransport(seed())
	observer := &recordingObserver{}
	store := NewStore(transport, WithName("profiles"), WithObserver(observer))
	assert.Equal(t, "profiles", store.Name())

	require.NoError(t, store.FetchAll(context.Background()))
	_, _ = store.FetchOne(context.Background(), "missing")
	require.NoError(t, store.SaveChanges(context.Background()))

	assert.Equal(t, []string{
		"profiles:fetch_all:ok",
		"profiles:fetch_one:error",
		"profiles:save:ok",
	}, observer.ops)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "loaded", StateLoaded.String())
}

// fetchReply is one scripted answer of gatedTransport.FetchAgentConfig.
type fetchReply struct {
	data Collection
	err  error
	gate chan struct{}
}

// gatedTransport answers fetches in call order and holds each one until its
// gate is closed.
type gatedTransport struct {
	mu      sync.Mutex
	calls   int
	replies []fetchReply
	started chan int
}

func newGatedTransport(replies ...fetchReply) *gatedTransport {
	for i := range replies {
		replies[i].gate = make(chan struct{})
	}
	return &gatedTransport{replies: replies, started: make(chan int, len(replies))}
}

func (g *gatedTransport) FetchAgentConfig(ctx context.Context) (Collection, error) {
	g.mu.Lock()
	reply := g.replies[g.calls]
	g.started <- g.calls
	g.calls++
	g.mu.Unlock()

	<-reply.gate
	return reply.data.Clone(), reply.err
}

func (g *gatedTransport) FetchAgent(ctx context.Context, key string) (Record, error) {
	return nil, errors.New("not scripted")
}

func (g *gatedTransport) SaveAgentConfig(ctx context.Context, all Collection) error {
	return nil
}

func (g *gatedTransport) release(i int) {
	close(g.replies[i].gate)
}

// startFetch runs FetchAll in the background once the previous call is in flight.
func startFetch(t *testing.T, store *Store, transport *gatedTransport, want int) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- store.FetchAll(context.Background()) }()
	select {
	case got := <-transport.started:
		require.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatalf("fetch %d never reached the transport", want)
	}
	return done
}

func TestOverlappingFetchesNeverStayLoading(t *testing.T) {
	for _, order := range [][2]int{{0, 1}, {1, 0}} {
		t.Run(fmt.Sprintf("release %d then %d", order[0], order[1]), func(t *testing.T) {
			transport := newGatedTransport(
				fetchReply{data: seed()},
				fetchReply{err: errBackendDown},
			)
			store := NewStore(transport)

			first := startFetch(t, store, transport, 0)
			second := startFetch(t, store, transport, 1)
			assert.Equal(t, StateLoading, store.State())

			results := map[int]<-chan error{0: first, 1: second}
			transport.release(order[0])
			errA := <-results[order[0]]
			transport.release(order[1])
			errB := <-results[order[1]]

			errs := map[int]error{order[0]: errA, order[1]: errB}
			assert.ErrorIs(t, errs[0], ErrStaleResponse)
			assert.ErrorIs(t, errs[1], errBackendDown)

			// the superseded success was dropped, so nothing was ever loaded
			assert.Equal(t, StateEmpty, store.State())
			assert.Empty(t, store.Working())
		})
	}
}

func TestFailedRefetchAfterLoadStaysLoaded(t *testing.T) {
	refreshed := seed()
	refreshed["c333"] = Record{"description": "third agent"}
	transport := newGatedTransport(
		fetchReply{data: seed()},
		fetchReply{data: refreshed},
		fetchReply{err: errBackendDown},
	)
	store := NewStore(transport)
	initial := startFetch(t, store, transport, 0)
	transport.release(0)
	require.NoError(t, <-initial)

	older := startFetch(t, store, transport, 1)
	newer := startFetch(t, store, transport, 2)
	transport.release(1)
	assert.ErrorIs(t, <-older, ErrStaleResponse)
	assert.Equal(t, StateLoading, store.State())

	transport.release(2)
	assert.ErrorIs(t, <-newer, errBackendDown)
	assert.Equal(t, StateLoaded, store.State())
	assert.Equal(t, seed(), store.Working())
	assert.Equal(t, seed(), store.Committed())
}

func TestNewestFetchWins(t *testing.T) {
	newest := Collection{"z99": {"description": "latest"}}
	transport := newGatedTransport(
		fetchReply{data: seed()},
		fetchReply{data: newest},
	)
	store := NewStore(transport)

	older := startFetch(t, store, transport, 0)
	newer := startFetch(t, store, transport, 1)
	transport.release(1)
	require.NoError(t, <-newer)
	transport.release(0)
	assert.ErrorIs(t, <-older, ErrStaleResponse)

	assert.Equal(t, StateLoaded, store.State())
	assert.Equal(t, newest, store.Working())
	assert.Equal(t, newest, store.Committed())
	assert.False(t, store.IsDirty())
}

func TestEditsDuringFetchAreKept(t *testing.T) {
	refreshed := seed()
	refreshed["b22"] = Record{"description": "changed upstream"}
	transport := newGatedTransport(
		fetchReply{data: seed()},
		fetchReply{data: refreshed},
	)
	store := NewStore(transport)
	initial := startFetch(t, store, transport, 0)
	transport.release(0)
	require.NoError(t, <-initial)

	pending := startFetch(t, store, transport, 1)
	require.NoError(t, store.Update("a1", Record{"description": "edited while loading"}))
	transport.release(1)
	require.NoError(t, <-pending)

	rec, _ := store.Get("a1")
	assert.Equal(t, "edited while loading", rec["description"])
	assert.Equal(t, refreshed, store.Committed())
	assert.True(t, store.IsDirty())
	assert.Equal(t, StateLoaded, store.State())
}
