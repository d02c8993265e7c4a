package tracker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/pkg/e"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// memoryFlags - FlagStore в памяти, переживает "перезапуск" трекера
type memoryFlags struct {
	mu    sync.Mutex
	flags models.TrackingFlags
	saves int
}

func (m *memoryFlags) GetTrackingFlags(context.Context) (models.TrackingFlags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags, nil
}

func (m *memoryFlags) SaveTrackingFlags(_ context.Context, flags models.TrackingFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = flags
	m.saves++
	return nil
}

func (m *memoryFlags) get() models.TrackingFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags
}

type fakeSession struct {
	id          string
	invalidated atomic.Bool
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Invalidate(context.Context) error {
	s.invalidated.Store(true)
	return nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions []*fakeSession
}

func (f *fakeSessions) Begin(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSession{id: uuid.NewString()}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeSessions) all() []*fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSession(nil), f.sessions...)
}

// inFlightProvider отдает первую отметку только после release, игнорируя отмену
type inFlightProvider struct {
	entered chan struct{}
	release chan struct{}
	fix     models.LocationFix
	calls   atomic.Int32
}

func (p *inFlightProvider) AuthorizationStatus() AuthorizationStatus { return AuthorizationAuthorized }

func (p *inFlightProvider) RequestAuthorization(context.Context) (AuthorizationStatus, error) {
	return AuthorizationAuthorized, nil
}

func (p *inFlightProvider) Open() {}

func (p *inFlightProvider) Drain() []models.LocationFix { return nil }

func (p *inFlightProvider) Next(ctx context.Context) (models.LocationFix, error) {
	if p.calls.Add(1) == 1 {
		close(p.entered)
		<-p.release
		return p.fix, nil
	}
	<-ctx.Done()
	return models.LocationFix{}, ctx.Err()
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return logger
}

func newTestTracker(t *testing.T, provider Provider, flags *memoryFlags, sessions *fakeSessions, opts Options) *Tracker {
	t.Helper()
	tr := New(provider, sessions, flags, newTestLogger(), opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = tr.Close(ctx)
	})
	return tr
}

func authorizedFeed(t *testing.T) *DeviceFeed {
	t.Helper()
	feed := NewDeviceFeed(8)
	require.NoError(t, feed.SetAuthorization(AuthorizationAuthorized))
	return feed
}

func fixAt(lat, lon float64) models.LocationFix {
	return models.LocationFix{Latitude: lat, Longitude: lon, Timestamp: time.Now().UTC()}
}

func TestStartUpdates_StreamsFixes(t *testing.T) {
	feed := authorizedFeed(t)
	flags := &memoryFlags{}
	tr := newTestTracker(t, feed, flags, &fakeSessions{}, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartUpdates(ctx))
	assert.Equal(t, StateStreaming, tr.Status().State)
	assert.True(t, flags.get().UpdatesStarted)

	require.NoError(t, feed.Push(fixAt(37.5665, 126.9780)))
	require.NoError(t, feed.Push(fixAt(37.5700, 126.9800)))

	assert.Eventually(t, func() bool { return tr.Status().Count == 2 }, waitFor, tick)

	last, ok := tr.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, 37.5700, last.Fix.Latitude)
	assert.Equal(t, int64(2), last.Count)
}

func TestStartUpdates_IsIdempotent(t *testing.T) {
	feed := authorizedFeed(t)
	flags := &memoryFlags{}
	tr := newTestTracker(t, feed, flags, &fakeSessions{}, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartUpdates(ctx))
	require.NoError(t, tr.StartUpdates(ctx))

	require.NoError(t, feed.Push(fixAt(1, 1)))
	assert.Eventually(t, func() bool { return tr.Status().Count == 1 }, waitFor, tick)
	assert.Equal(t, 1, flags.saves)
}

func TestStartUpdates_RequestsPermission(t *testing.T) {
	feed := NewDeviceFeed(8)
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{PermissionTimeout: waitFor})
	ctx := context.Background()

	require.NoError(t, tr.StartUpdates(ctx))
	assert.Equal(t, StateRequestingPermission, tr.Status().State)

	require.NoError(t, feed.SetAuthorization(AuthorizationAuthorized))

	assert.Eventually(t, func() bool { return tr.Status().State == StateStreaming }, waitFor, tick)
}

func TestStartUpdates_PermissionDeniedWhileRequesting(t *testing.T) {
	feed := NewDeviceFeed(8)
	flags := &memoryFlags{}
	tr := newTestTracker(t, feed, flags, &fakeSessions{}, Options{PermissionTimeout: waitFor})

	require.NoError(t, tr.StartUpdates(context.Background()))
	require.NoError(t, feed.SetAuthorization(AuthorizationDenied))

	assert.Eventually(t, func() bool { return tr.Status().State == StateIdle }, waitFor, tick)
	// Ошибка только логируется, флаг остается для следующего запуска
	assert.True(t, flags.get().UpdatesStarted)
}

func TestStartUpdates_PermissionTimeout(t *testing.T) {
	feed := NewDeviceFeed(8)
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{PermissionTimeout: 20 * time.Millisecond})

	require.NoError(t, tr.StartUpdates(context.Background()))

	assert.Eventually(t, func() bool { return tr.Status().State == StateIdle }, waitFor, tick)
}

func TestStartUpdates_AlreadyDenied(t *testing.T) {
	feed := NewDeviceFeed(8)
	require.NoError(t, feed.SetAuthorization(AuthorizationDenied))
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{})

	require.NoError(t, tr.StartUpdates(context.Background()))

	status := tr.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Equal(t, AuthorizationDenied, status.Authorization)
}

func TestStopUpdates(t *testing.T) {
	feed := authorizedFeed(t)
	flags := &memoryFlags{}
	tr := newTestTracker(t, feed, flags, &fakeSessions{}, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartUpdates(ctx))
	require.NoError(t, tr.StopUpdates(ctx))

	assert.Eventually(t, func() bool { return tr.Status().State == StateIdle }, waitFor, tick)
	assert.False(t, flags.get().UpdatesStarted)
	assert.False(t, tr.Status().UpdatesStarted)
}

func TestStopUpdates_DeliversInFlightFix(t *testing.T) {
	provider := &inFlightProvider{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		fix:     fixAt(37.5665, 126.9780),
	}
	tr := newTestTracker(t, provider, &memoryFlags{}, &fakeSessions{}, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartUpdates(ctx))
	<-provider.entered

	// Остановка, пока отметка еще в пути
	require.NoError(t, tr.StopUpdates(ctx))
	close(provider.release)

	assert.Eventually(t, func() bool { return tr.Status().State == StateIdle }, waitFor, tick)

	last, ok := tr.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, provider.fix.Latitude, last.Fix.Latitude)
	assert.Equal(t, int64(1), last.Count)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestStopUpdates_RecordsAcceptedFixes(t *testing.T) {
	for run := 0; run < 50; run++ {
		feed := authorizedFeed(t)
		tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{})
		ctx := context.Background()

		require.NoError(t, tr.StartUpdates(ctx))
		for i := 1; i <= 3; i++ {
			require.NoError(t, feed.Push(fixAt(float64(i), float64(i))))
		}
		require.NoError(t, tr.StopUpdates(ctx))

		closeCtx, cancel := context.WithTimeout(ctx, waitFor)
		require.NoError(t, tr.Close(closeCtx))
		cancel()

		// Все отметки, принятые потоком, записаны до остановки цикла
		status := tr.Status()
		require.Equal(t, int64(3), status.Count, "run %d", run)
		require.NotNil(t, status.LastUpdate)
		assert.Equal(t, 3.0, status.LastUpdate.Fix.Latitude)
		assert.Equal(t, StateIdle, status.State)
	}
}

func TestStartUpdates_IgnoresFixesPushedWhileIdle(t *testing.T) {
	feed := authorizedFeed(t)
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartUpdates(ctx))
	require.NoError(t, tr.StopUpdates(ctx))
	require.Eventually(t, func() bool { return tr.Status().State == StateIdle }, waitFor, tick)

	assert.ErrorIs(t, feed.Push(fixAt(10, 10)), e.ErrConflict)

	require.NoError(t, tr.StartUpdates(ctx))
	assert.Never(t, func() bool { return tr.Status().Count > 0 }, 100*time.Millisecond, tick)
	_, ok := tr.LastUpdate()
	assert.False(t, ok)
}

func TestStartUpdates_IgnoresFeedErrorReportedWhileIdle(t *testing.T) {
	feed := authorizedFeed(t)
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{})

	assert.ErrorIs(t, feed.Fail(errors.New("gps lost")), e.ErrConflict)

	require.NoError(t, tr.StartUpdates(context.Background()))
	assert.Never(t, func() bool { return tr.Status().State != StateStreaming }, 100*time.Millisecond, tick)
}

func TestStartUpdates_RestartAfterStop(t *testing.T) {
	feed := authorizedFeed(t)
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartUpdates(ctx))
	require.NoError(t, tr.StopUpdates(ctx))
	require.NoError(t, tr.StartUpdates(ctx))

	require.NoError(t, feed.Push(fixAt(1, 1)))
	assert.Eventually(t, func() bool { return tr.Status().Count == 1 }, waitFor, tick)
	assert.Equal(t, StateStreaming, tr.Status().State)
}

func TestFeedError_ReturnsToIdle(t *testing.T) {
	feed := authorizedFeed(t)
	flags := &memoryFlags{}
	tr := newTestTracker(t, feed, flags, &fakeSessions{}, Options{})

	require.NoError(t, tr.StartUpdates(context.Background()))
	require.NoError(t, feed.Fail(errors.New("gps lost")))

	assert.Eventually(t, func() bool { return tr.Status().State == StateIdle }, waitFor, tick)
	assert.True(t, flags.get().UpdatesStarted)
}

func TestFeedError_RetriesWithBackoff(t *testing.T) {
	feed := authorizedFeed(t)
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{MaxRetries: 2, BaseDelay: time.Millisecond})

	require.NoError(t, tr.StartUpdates(context.Background()))
	require.NoError(t, feed.Fail(errors.New("gps lost")))
	require.NoError(t, feed.Push(fixAt(1, 1)))

	assert.Eventually(t, func() bool { return tr.Status().Count == 1 }, waitFor, tick)
	assert.Equal(t, StateStreaming, tr.Status().State)
}

func TestStationaryDetection(t *testing.T) {
	feed := authorizedFeed(t)
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{StationaryRadius: 5})

	require.NoError(t, tr.StartUpdates(context.Background()))

	require.NoError(t, feed.Push(fixAt(37.5665, 126.9780)))
	assert.Eventually(t, func() bool { return tr.Status().Count == 1 }, waitFor, tick)
	first, _ := tr.LastUpdate()
	assert.False(t, first.Stationary)

	// ~1 метр к северу
	require.NoError(t, feed.Push(fixAt(37.566509, 126.9780)))
	assert.Eventually(t, func() bool { return tr.Status().Count == 2 }, waitFor, tick)
	second, _ := tr.LastUpdate()
	assert.True(t, second.Stationary)

	// ~1 км к северу
	require.NoError(t, feed.Push(fixAt(37.5755, 126.9780)))
	assert.Eventually(t, func() bool { return tr.Status().Count == 3 }, waitFor, tick)
	third, _ := tr.LastUpdate()
	assert.False(t, third.Stationary)

	// Устройство само сообщает о стоянке
	reported := fixAt(37.6, 127.0)
	reported.Stationary = true
	require.NoError(t, feed.Push(reported))
	assert.Eventually(t, func() bool { return tr.Status().Count == 4 }, waitFor, tick)
	fourth, _ := tr.LastUpdate()
	assert.True(t, fourth.Stationary)
}

func TestSubscribe(t *testing.T) {
	feed := authorizedFeed(t)
	tr := newTestTracker(t, feed, &memoryFlags{}, &fakeSessions{}, Options{})

	updates, unsubscribe := tr.Subscribe()
	require.NoError(t, tr.StartUpdates(context.Background()))
	require.NoError(t, feed.Push(fixAt(10, 20)))

	select {
	case update := <-updates:
		assert.Equal(t, 10.0, update.Fix.Latitude)
		assert.Equal(t, int64(1), update.Count)
	case <-time.After(waitFor):
		t.Fatal("no update received")
	}

	unsubscribe()
	unsubscribe() // Повторный вызов безопасен
	_, open := <-updates
	assert.False(t, open)
}

func TestSetBackgroundActivity(t *testing.T) {
	flags := &memoryFlags{}
	sessions := &fakeSessions{}
	tr := newTestTracker(t, authorizedFeed(t), flags, sessions, Options{})
	ctx := context.Background()

	require.NoError(t, tr.SetBackgroundActivity(ctx, true))
	require.Len(t, sessions.all(), 1)
	session := sessions.all()[0]
	assert.False(t, session.invalidated.Load())
	assert.Equal(t, session.ID(), tr.Status().SessionID)
	assert.True(t, flags.get().BackgroundActivity)

	// Повторное включение не выделяет новую сессию
	require.NoError(t, tr.SetBackgroundActivity(ctx, true))
	assert.Len(t, sessions.all(), 1)

	require.NoError(t, tr.SetBackgroundActivity(ctx, false))
	assert.True(t, session.invalidated.Load())
	assert.Empty(t, tr.Status().SessionID)
	assert.False(t, flags.get().BackgroundActivity)
}

func TestResume_RestoresFlagsAfterRestart(t *testing.T) {
	flags := &memoryFlags{}
	ctx := context.Background()

	// Первый запуск процесса
	first := newTestTracker(t, authorizedFeed(t), flags, &fakeSessions{}, Options{})
	require.NoError(t, first.SetBackgroundActivity(ctx, true))
	require.NoError(t, first.StartUpdates(ctx))
	closeCtx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()
	require.NoError(t, first.Close(closeCtx))

	// Закрытие процесса не сбрасывает флаги
	assert.Equal(t, models.TrackingFlags{UpdatesStarted: true, BackgroundActivity: true}, flags.get())

	// Второй запуск процесса
	sessions := &fakeSessions{}
	second := newTestTracker(t, authorizedFeed(t), flags, sessions, Options{})
	require.NoError(t, second.Resume(ctx))

	status := second.Status()
	assert.Equal(t, StateStreaming, status.State)
	assert.True(t, status.UpdatesStarted)
	assert.True(t, status.BackgroundActivity)
	assert.Len(t, sessions.all(), 1)
}

func TestResume_NothingToRestore(t *testing.T) {
	sessions := &fakeSessions{}
	tr := newTestTracker(t, authorizedFeed(t), &memoryFlags{}, sessions, Options{})

	require.NoError(t, tr.Resume(context.Background()))

	assert.Equal(t, StateIdle, tr.Status().State)
	assert.Empty(t, sessions.all())
}

func TestDistanceMeters(t *testing.T) {
	seoul := models.LocationFix{Latitude: 37.5665, Longitude: 126.9780}
	busan := models.LocationFix{Latitude: 35.1796, Longitude: 129.0756}

	assert.InDelta(t, 325000, distanceMeters(seoul, busan), 5000)
	assert.Zero(t, distanceMeters(seoul, seoul))
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	for attempt := 0; attempt < 4; attempt++ {
		d := backoff(base, attempt)
		lower := base << attempt
		assert.GreaterOrEqual(t, d, lower)
		assert.LessOrEqual(t, d, lower+base/2)
	}
}
