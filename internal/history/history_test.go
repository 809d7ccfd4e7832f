package history

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, label string, ts time.Time) Record {
	return Record{
		ID:         id,
		Timestamp:  ts,
		FinalLabel: label,
		RiskScore:  0.5,
		Result:     json.RawMessage(`{"final_label":"` + label + `"}`),
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	a, b, c := uuid.NewString(), uuid.NewString(), uuid.NewString()
	require.NoError(t, s.Save(ctx, record(a, "SAFE", base)))
	require.NoError(t, s.Save(ctx, record(b, "HIGH_RISK", base.Add(time.Second))))
	require.NoError(t, s.Save(ctx, record(c, "HIGH_RISK", base.Add(2*time.Second))))

	got, err := s.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "HIGH_RISK", got.FinalLabel)
	assert.JSONEq(t, `{"final_label":"HIGH_RISK"}`, string(got.Result))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, c, list[0].ID)
	assert.Equal(t, b, list[1].ID)

	assert.ErrorIs(t, s.SaveFeedback(ctx, Feedback{AnalysisID: "missing", IsCorrect: true}), ErrNotFound)
	require.NoError(t, s.SaveFeedback(ctx, Feedback{AnalysisID: a, IsCorrect: false}))
	require.NoError(t, s.SaveFeedback(ctx, Feedback{AnalysisID: a, IsCorrect: true, UserLabel: "SAFE"}))
	require.NoError(t, s.SaveFeedback(ctx, Feedback{AnalysisID: b, IsCorrect: false}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, map[string]int{"SAFE": 1, "HIGH_RISK": 2}, st.ByLabel)
	assert.Equal(t, 2, st.Feedback)
	assert.Equal(t, 1, st.Correct)
	assert.Equal(t, 1, st.Incorrect)
	require.NotNil(t, st.Accuracy)
	assert.InDelta(t, 0.5, *st.Accuracy, 1e-9)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger("")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestBadgerStorePersistsAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, record("old", "SAFE", base)))
	require.NoError(t, s.Save(ctx, record("new", "SAFE", base.Add(time.Minute))))
	// re-saving keeps the original position
	require.NoError(t, s.Save(ctx, record("old", "HIGH_RISK", base.Add(time.Hour))))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir)
	require.NoError(t, err)
	defer s.Close()

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
	assert.Equal(t, "HIGH_RISK", list[1].FinalLabel)
	assert.True(t, list[1].Timestamp.Equal(base))
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, record(id, "SAFE", now.Add(time.Duration(i)*time.Second))))
	}
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	st, _ := s.Stats(ctx)
	assert.Equal(t, 2, st.Total)
	assert.Nil(t, st.Accuracy)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ADAWARE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ADAWARE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.Exec(ctx, `TRUNCATE analyses CASCADE`)
		_ = s.Close()
	})
	_, err = s.db.Exec(ctx, `TRUNCATE analyses CASCADE`)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", Snippet("  a \n b "))
	long := strings.Repeat("é", 80)
	s := Snippet(long)
	assert.LessOrEqual(t, len(s), 100)
	assert.True(t, strings.HasPrefix(long, s))
	assert.Equal(t, 50, len([]rune(s)))
}

func TestEmitterDeliversToStoreAndFile(t *testing.T) {
	store := NewMemoryStore(0)
	path := filepath.Join(t.TempDir(), "nested", "history.jsonl")
	file, err := NewFileSink(path)
	require.NoError(t, err)

	em := NewEmitter(EmitterConfig{Workers: 2}, StoreSink{Store: store}, file)
	rec := record("r1", "MODERATE_RISK", time.Now())
	em.Emit(&rec)
	em.Emit(nil)
	em.Close(context.Background())

	got, err := store.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "MODERATE_RISK", got.FinalLabel)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	var decoded Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "r1", decoded.ID)

	m := em.Snapshot()
	assert.Equal(t, uint64(1), m.Enqueued)
	assert.Equal(t, uint64(1), m.SinkSuccess["store"])

	em.Emit(&rec)
	assert.Equal(t, uint64(1), em.Snapshot().Dropped)
}

type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Name() string { return "blocking" }
func (b *blockingSink) Deliver(context.Context, *Record) error {
	<-b.release
	return nil
}
func (b *blockingSink) Close(context.Context) error { return nil }

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	var hooked atomic.Int32
	em := NewEmitter(EmitterConfig{
		QueueSize: 1, Workers: 1, ShutdownTimeout: time.Second,
		OnDrop: func() { hooked.Add(1) },
	}, sink)

	rec := record("r", "SAFE", time.Now())
	for i := 0; i < 5; i++ {
		em.Emit(&rec)
	}
	close(sink.release)
	em.Close(context.Background())

	m := em.Snapshot()
	assert.Equal(t, uint64(5), m.Enqueued+m.Dropped)
	assert.GreaterOrEqual(t, m.Dropped, uint64(3))
	assert.EqualValues(t, m.Dropped, hooked.Load())
}

func TestWebhookSinkRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.Header.Get("X-Test"))
		assert.Equal(t, "r1", r.Header.Get(AnalysisIDHeader))

		var ev webhookEvent
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		assert.Equal(t, "analysis.completed", ev.Event)
		assert.Equal(t, "SAFE", ev.FinalLabel)

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, map[string]string{"X-Test": "1"}, time.Second)
	require.NoError(t, err)
	rec := record("r1", "SAFE", time.Now())
	require.NoError(t, sink.Deliver(context.Background(), &rec))
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookSinkDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("fail"))
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, nil, 200*time.Millisecond)
	require.NoError(t, err)
	rec := record("r1", "SAFE", time.Now())
	err = sink.Deliver(context.Background(), &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 418")
	assert.Equal(t, int32(1), calls.Load())

	_, err = NewWebhookSink("", nil, 0)
	assert.Error(t, err)
}

func TestFileSinkSplitsByDay(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "history-"+DatePlaceholder+".jsonl"))
	require.NoError(t, err)

	day1 := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	for _, rec := range []Record{
		record("a", "SAFE", day1),
		record("b", "SAFE", day1.Add(30*time.Minute)),
		record("c", "HIGH_RISK", day1.Add(2*time.Hour)),
	} {
		rec := rec
		require.NoError(t, sink.Deliver(context.Background(), &rec))
	}
	require.NoError(t, sink.Close(context.Background()))

	first, err := os.ReadFile(filepath.Join(dir, "history-2026-03-01.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(first), "\n"))

	second, err := os.ReadFile(filepath.Join(dir, "history-2026-03-02.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(second), "\n"))

	rec := record("d", "SAFE", day1)
	assert.Error(t, sink.Deliver(context.Background(), &rec))
}

type fakePutter struct {
	mu   sync.Mutex
	keys []string
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3SinkKeysByDay(t *testing.T) {
	fp := &fakePutter{}
	sink := newS3Sink(fp, "ads-archive", "/adaware/")
	rec := record("r9", "HIGH_RISK", time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))

	require.NoError(t, sink.Deliver(context.Background(), &rec))
	require.NoError(t, sink.Deliver(context.Background(), nil))
	assert.Equal(t, []string{"adaware/2026/04/02/r9.json"}, fp.keys)

	var got Record
	require.NoError(t, json.Unmarshal(fp.body, &got))
	assert.Equal(t, "HIGH_RISK", got.FinalLabel)

	fp.err = errors.New("access denied")
	err := sink.Deliver(context.Background(), &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r9")

	_, err = NewS3Sink(context.Background(), S3Config{})
	assert.Error(t, err)
}
