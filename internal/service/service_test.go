package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/surebot/surebot/internal/domain"
	"github.com/surebot/surebot/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOppStore is an in-memory domain.OpportunityStore.
type fakeOppStore struct {
	opps      []domain.Opportunity
	insertErr error
}

func (f *fakeOppStore) Insert(_ context.Context, opp domain.Opportunity) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.opps = append(f.opps, opp)
	return nil
}

func (f *fakeOppStore) GetByID(_ context.Context, id string) (domain.Opportunity, error) {
	for _, opp := range f.opps {
		if opp.ID == id {
			return opp, nil
		}
	}
	return domain.Opportunity{}, domain.ErrNotFound
}

func (f *fakeOppStore) MarkSettled(_ context.Context, id string) error {
	for i, opp := range f.opps {
		if opp.ID == id && opp.SettledAt == nil {
			now := time.Now()
			f.opps[i].SettledAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeOppStore) ListRecent(_ context.Context, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 || limit > len(f.opps) {
		limit = len(f.opps)
	}
	return f.opps[:limit], nil
}

func (f *fakeOppStore) ListBefore(context.Context, time.Time, int) ([]domain.Opportunity, error) {
	return nil, nil
}

func (f *fakeOppStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// fakeBus records published payloads per channel and stream.
type fakeBus struct {
	published map[string][][]byte
	appended  map[string][][]byte
	pubErr    error
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		appended:  make(map[string][][]byte),
	}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	f.appended[stream] = append(f.appended[stream], payload)
	return nil
}

func (f *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

// fakeAuditStore records audit events.
type fakeAuditStore struct {
	events []string
	logErr error
}

func (f *fakeAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	if f.logErr != nil {
		return f.logErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditStore) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (f *fakeAuditStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// fakeBookStore holds book rows and open positions in memory.
type fakeBookStore struct {
	books map[string]domain.BookPosition
	open  []domain.OpenPosition
}

func newFakeBookStore() *fakeBookStore {
	return &fakeBookStore{books: make(map[string]domain.BookPosition)}
}

func (f *fakeBookStore) UpsertBook(_ context.Context, pos domain.BookPosition) error {
	f.books[pos.Book] = pos
	return nil
}

func (f *fakeBookStore) GetBook(_ context.Context, book string) (domain.BookPosition, error) {
	pos, ok := f.books[book]
	if !ok {
		return domain.BookPosition{}, domain.ErrNotFound
	}
	return pos, nil
}

func (f *fakeBookStore) ListBooks(context.Context) ([]domain.BookPosition, error) {
	out := make([]domain.BookPosition, 0, len(f.books))
	for _, pos := range f.books {
		out = append(out, pos)
	}
	return out, nil
}

func (f *fakeBookStore) InsertPosition(_ context.Context, pos domain.OpenPosition) error {
	f.open = append(f.open, pos)
	return nil
}

func (f *fakeBookStore) ListOpenPositions(context.Context) ([]domain.OpenPosition, error) {
	return f.open, nil
}

func (f *fakeBookStore) ClosePosition(_ context.Context, id string) error {
	for i, pos := range f.open {
		if pos.ID == id {
			f.open = append(f.open[:i], f.open[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// fakePositionCache is an in-memory domain.PositionCache.
type fakePositionCache struct {
	positions map[string]domain.BookPosition
	getErr    error
}

func newFakePositionCache() *fakePositionCache {
	return &fakePositionCache{positions: make(map[string]domain.BookPosition)}
}

func (f *fakePositionCache) SetPosition(_ context.Context, pos domain.BookPosition) error {
	f.positions[pos.Book] = pos
	return nil
}

func (f *fakePositionCache) GetPosition(_ context.Context, book string) (domain.BookPosition, error) {
	pos, ok := f.positions[book]
	if !ok {
		return domain.BookPosition{}, domain.ErrNotFound
	}
	return pos, nil
}

func (f *fakePositionCache) GetPositions(_ context.Context, books []string) (map[string]domain.BookPosition, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make(map[string]domain.BookPosition)
	for _, book := range books {
		if pos, ok := f.positions[book]; ok {
			out[book] = pos
		}
	}
	return out, nil
}

type recordingSender struct {
	alerts []notify.Alert
}

func (r *recordingSender) Send(_ context.Context, alert notify.Alert) error {
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func testOpp() domain.Opportunity {
	return domain.Opportunity{
		ID:         "opp-1",
		EventID:    "event-1",
		MarketID:   "market-1",
		MarketType: "match_winner",
		Odds:       map[string]float64{"home": 2.1, "away": 2.2},
		Books:      map[string]string{"home": "bet365", "away": "pinnacle"},
		ProfitPct:  7.44,
		RiskScore:  0.83,
		Sources:    []string{"bet365", "pinnacle"},
		DetectedAt: time.Now(),
	}
}

func TestRecordPersistsPublishesAndAudits(t *testing.T) {
	store := &fakeOppStore{}
	bus := newFakeBus()
	audit := &fakeAuditStore{}
	sender := &recordingSender{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, nil, testLogger())

	svc := NewOpportunityService(store, bus, audit, notifier, testLogger())

	plan := &domain.StakePlan{
		ID:            "plan-1",
		OpportunityID: "opp-1",
		Stakes:        map[string]float64{"home": 511.63, "away": 488.37},
		TotalStake:    1000,
	}
	err := svc.Record(context.Background(), testOpp(), plan)
	require.NoError(t, err)

	require.Len(t, store.opps, 1)
	require.Equal(t, "opp-1", store.opps[0].ID)

	require.Len(t, bus.published[domain.ChannelOpportunities], 1)
	require.Len(t, bus.appended[domain.StreamOpportunities], 1)

	var evt map[string]any
	require.NoError(t, json.Unmarshal(bus.published[domain.ChannelOpportunities][0], &evt))
	require.Equal(t, "opp-1", evt["opp_id"])
	require.Equal(t, notify.EventOpportunityDetected, evt["event"])
	require.NotNil(t, evt["plan"])

	require.Equal(t, []string{"opportunity_recorded"}, audit.events)
	require.Len(t, sender.alerts, 1)
	require.Contains(t, sender.alerts[0].Title, "7.44%")
	require.Equal(t, []string{"bet365", "pinnacle"}, sender.alerts[0].Books)
	require.InDelta(t, 7.44, sender.alerts[0].ProfitPct, 1e-9)
}

func TestRecordWithoutPlan(t *testing.T) {
	store := &fakeOppStore{}
	bus := newFakeBus()
	audit := &fakeAuditStore{}

	svc := NewOpportunityService(store, bus, audit, nil, testLogger())
	require.NoError(t, svc.Record(context.Background(), testOpp(), nil))

	var evt map[string]any
	require.NoError(t, json.Unmarshal(bus.published[domain.ChannelOpportunities][0], &evt))
	require.Nil(t, evt["plan"])
}

func TestRecordInsertFailureIsFatal(t *testing.T) {
	store := &fakeOppStore{insertErr: errors.New("connection refused")}
	bus := newFakeBus()

	svc := NewOpportunityService(store, bus, &fakeAuditStore{}, nil, testLogger())
	err := svc.Record(context.Background(), testOpp(), nil)
	require.Error(t, err)
	require.Empty(t, bus.published)
}

func TestRecordPublishFailureIsNotFatal(t *testing.T) {
	store := &fakeOppStore{}
	bus := newFakeBus()
	bus.pubErr = errors.New("redis down")
	audit := &fakeAuditStore{}

	svc := NewOpportunityService(store, bus, audit, nil, testLogger())
	require.NoError(t, svc.Record(context.Background(), testOpp(), nil))

	require.Len(t, store.opps, 1)
	require.Equal(t, []string{"opportunity_recorded"}, audit.events)
}

func TestRecordAuditFailureIsNotFatal(t *testing.T) {
	store := &fakeOppStore{}
	audit := &fakeAuditStore{logErr: errors.New("table missing")}

	svc := NewOpportunityService(store, newFakeBus(), audit, nil, testLogger())
	require.NoError(t, svc.Record(context.Background(), testOpp(), nil))
	require.Len(t, store.opps, 1)
}

func TestMarkSettled(t *testing.T) {
	store := &fakeOppStore{}
	audit := &fakeAuditStore{}
	svc := NewOpportunityService(store, newFakeBus(), audit, nil, testLogger())

	require.NoError(t, svc.Record(context.Background(), testOpp(), nil))
	require.NoError(t, svc.MarkSettled(context.Background(), "opp-1"))
	require.NotNil(t, store.opps[0].SettledAt)
	require.Equal(t, []string{"opportunity_recorded", "opportunity_settled"}, audit.events)

	// Settling twice is a caller error.
	err := svc.MarkSettled(context.Background(), "opp-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByIDWrapsNotFound(t *testing.T) {
	svc := NewOpportunityService(&fakeOppStore{}, newFakeBus(), &fakeAuditStore{}, nil, testLogger())
	_, err := svc.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotCacheHitSkipsStore(t *testing.T) {
	books := newFakeBookStore()
	cache := newFakePositionCache()
	cached := domain.BookPosition{
		Book:               "bet365",
		AvailableLiquidity: 5000,
		MaxBetSize:         2000,
		MinBetSize:         10,
		ReliabilityScore:   0.9,
	}
	require.NoError(t, cache.SetPosition(context.Background(), cached))

	svc := NewPositionService(books, cache, testLogger())
	snap, err := svc.Snapshot(context.Background(), []string{"bet365"})
	require.NoError(t, err)
	require.Len(t, snap, 1)
	require.Equal(t, 5000.0, snap["bet365"].AvailableLiquidity)
}

func TestSnapshotFallsBackToStoreAndFillsCache(t *testing.T) {
	books := newFakeBookStore()
	cache := newFakePositionCache()
	stored := domain.BookPosition{
		Book:               "pinnacle",
		AvailableLiquidity: 8000,
		MaxBetSize:         3000,
		MinBetSize:         20,
		ReliabilityScore:   0.95,
	}
	require.NoError(t, books.UpsertBook(context.Background(), stored))

	svc := NewPositionService(books, cache, testLogger())
	snap, err := svc.Snapshot(context.Background(), []string{"pinnacle"})
	require.NoError(t, err)
	require.Equal(t, 0.95, snap["pinnacle"].ReliabilityScore)

	_, ok := cache.positions["pinnacle"]
	require.True(t, ok, "store read should populate the cache")
}

func TestSnapshotOmitsUnknownBooks(t *testing.T) {
	svc := NewPositionService(newFakeBookStore(), nil, testLogger())
	snap, err := svc.Snapshot(context.Background(), []string{"ghost"})
	require.NoError(t, err)
	require.Empty(t, snap)
}

func TestSnapshotDerivesExposureFromOpenPositions(t *testing.T) {
	books := newFakeBookStore()
	pos := domain.BookPosition{
		Book:               "bet365",
		AvailableLiquidity: 5000,
		CurrentExposure:    9999, // stale stored value, must be overridden
		MaxBetSize:         2000,
		MinBetSize:         10,
		ReliabilityScore:   0.9,
	}
	require.NoError(t, books.UpsertBook(context.Background(), pos))
	require.NoError(t, books.InsertPosition(context.Background(), domain.OpenPosition{
		ID: "bet-1", Book: "bet365", MarketID: "m1", Outcome: "home", Stake: 100, Odds: 2.1,
	}))

	svc := NewPositionService(books, nil, testLogger())
	snap, err := svc.Snapshot(context.Background(), []string{"bet365"})
	require.NoError(t, err)
	// worst case pays 100*2.1 = 210 against 100 staked
	require.InDelta(t, 110.0, snap["bet365"].CurrentExposure, 1e-9)
}

func TestSnapshotCacheErrorFallsBackToStore(t *testing.T) {
	books := newFakeBookStore()
	require.NoError(t, books.UpsertBook(context.Background(), domain.BookPosition{
		Book:               "betfair",
		AvailableLiquidity: 3000,
		MaxBetSize:         1000,
		MinBetSize:         5,
		ReliabilityScore:   0.95,
	}))
	cache := newFakePositionCache()
	cache.getErr = errors.New("redis timeout")

	svc := NewPositionService(books, cache, testLogger())
	snap, err := svc.Snapshot(context.Background(), []string{"betfair"})
	require.NoError(t, err)
	require.Len(t, snap, 1)
}

func TestRefreshValidatesAndWritesThrough(t *testing.T) {
	books := newFakeBookStore()
	cache := newFakePositionCache()
	svc := NewPositionService(books, cache, testLogger())

	err := svc.Refresh(context.Background(), domain.BookPosition{ReliabilityScore: 0.9})
	require.Error(t, err, "empty book identifier must be rejected")

	pos := domain.BookPosition{
		Book:               "bet365",
		AvailableLiquidity: 5000,
		MaxBetSize:         2000,
		MinBetSize:         10,
		ReliabilityScore:   0.9,
	}
	require.NoError(t, svc.Refresh(context.Background(), pos))
	require.Contains(t, books.books, "bet365")
	require.Contains(t, cache.positions, "bet365")
}

func TestRecordAndSettleBet(t *testing.T) {
	books := newFakeBookStore()
	svc := NewPositionService(books, nil, testLogger())

	bet := domain.OpenPosition{ID: "bet-1", Book: "bet365", MarketID: "m1", Outcome: "home", Stake: 50, Odds: 2.0}
	require.NoError(t, svc.RecordBet(context.Background(), bet))
	require.Len(t, books.open, 1)

	require.NoError(t, svc.SettleBet(context.Background(), "bet-1"))
	require.Empty(t, books.open)

	err := svc.SettleBet(context.Background(), "bet-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
