package tracker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/s2"
	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/sirupsen/logrus"
)

// earthRadiusMeters - средний радиус Земли
const earthRadiusMeters = 6371008.8

const subscriberBuffer = 16

// State - состояние трекера
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateStreaming            State = "streaming"
)

// Options - настройки трекера
type Options struct {
	PermissionTimeout time.Duration
	// StationaryRadius - смещение в метрах, ниже которого отметка считается стоянкой
	StationaryRadius float64
	// MaxRetries - сколько раз перезапускать поток после ошибки, 0 - не перезапускать
	MaxRetries int
	BaseDelay  time.Duration
}

// Status - снимок состояния трекера
type Status struct {
	State              State                  `json:"state"`
	Authorization      AuthorizationStatus    `json:"authorization"`
	UpdatesStarted     bool                   `json:"updates_started"`
	BackgroundActivity bool                   `json:"background_activity"`
	SessionID          string                 `json:"session_id,omitempty"`
	Count              int64                  `json:"count"`
	LastUpdate         *models.LocationUpdate `json:"last_update,omitempty"`
}

// Tracker ведет сессию получения координат: idle -> requesting_permission -> streaming -> idle.
// Флаги updatesStarted и backgroundActivity сохраняются в FlagStore.
type Tracker struct {
	provider Provider
	sessions SessionProvider
	flags    FlagStore
	logger   *logrus.Logger
	opts     Options

	// updatesStarted проверяется циклом после каждой отметки
	updatesStarted atomic.Bool

	mu                 sync.Mutex
	state              State
	backgroundActivity bool
	session            Session
	last               *models.LocationUpdate
	count              int64
	cancel             context.CancelFunc
	done               chan struct{}
	subscribers        map[chan models.LocationUpdate]struct{}
}

func New(provider Provider, sessions SessionProvider, flags FlagStore, logger *logrus.Logger, opts Options) *Tracker {
	return &Tracker{
		provider:    provider,
		sessions:    sessions,
		flags:       flags,
		logger:      logger,
		opts:        opts,
		state:       StateIdle,
		subscribers: make(map[chan models.LocationUpdate]struct{}),
	}
}

// Resume восстанавливает фоновую сессию и поток по сохраненным флагам
func (t *Tracker) Resume(ctx context.Context) error {
	flags, err := t.flags.GetTrackingFlags(ctx)
	if err != nil {
		return fmt.Errorf("tracker: could not load tracking flags: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"component":           "tracker",
		"updates_started":     flags.UpdatesStarted,
		"background_activity": flags.BackgroundActivity,
	}).Info("Restoring tracking state")

	if flags.BackgroundActivity {
		if err := t.SetBackgroundActivity(ctx, true); err != nil {
			return err
		}
	}
	if flags.UpdatesStarted {
		return t.StartUpdates(ctx)
	}
	return nil
}

// StartUpdates запускает поток координат. Повторный вызов во время работы ничего не делает.
func (t *Tracker) StartUpdates(ctx context.Context) error {
	log := t.logger.WithFields(logrus.Fields{
		"component": "tracker",
		"method":    "StartUpdates",
	})

	// Если поток еще останавливается, дожидаемся его завершения
	for {
		t.mu.Lock()
		if t.state == StateIdle {
			break
		}
		if t.updatesStarted.Load() {
			t.mu.Unlock()
			return nil
		}
		done := t.done
		t.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer t.mu.Unlock()

	t.updatesStarted.Store(true)
	if err := t.saveFlagsLocked(ctx); err != nil {
		t.updatesStarted.Store(false)
		return err
	}

	authorization := t.provider.AuthorizationStatus()
	if authorization == AuthorizationDenied {
		log.Warn("Location permission denied, updates not started")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	if authorization == AuthorizationNotDetermined {
		t.state = StateRequestingPermission
	} else {
		t.provider.Open()
		t.state = StateStreaming
	}

	go t.run(runCtx, cancel, done, authorization == AuthorizationNotDetermined)
	log.Info("Location updates started")
	return nil
}

// StopUpdates снимает флаг и прерывает ожидание следующей отметки.
// Уже принятые отметки записываются до остановки цикла.
func (t *Tracker) StopUpdates(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.updatesStarted.Store(false)
	err := t.saveFlagsLocked(ctx)
	if t.cancel != nil {
		t.cancel()
	}

	t.logger.WithFields(logrus.Fields{
		"component": "tracker",
		"method":    "StopUpdates",
	}).Info("Location updates stop requested")
	return err
}

// SetBackgroundActivity выделяет или освобождает дескриптор фоновой активности
func (t *Tracker) SetBackgroundActivity(ctx context.Context, enabled bool) error {
	log := t.logger.WithFields(logrus.Fields{
		"component": "tracker",
		"method":    "SetBackgroundActivity",
		"enabled":   enabled,
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	if enabled && t.session == nil {
		session, err := t.sessions.Begin(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to begin background activity session")
			return fmt.Errorf("tracker: could not begin background session: %w", err)
		}
		t.session = session
		log.WithField("session_id", session.ID()).Info("Background activity session started")
	}

	if !enabled && t.session != nil {
		if err := t.session.Invalidate(ctx); err != nil {
			log.WithError(err).Warn("Failed to invalidate background activity session")
		}
		log.WithField("session_id", t.session.ID()).Info("Background activity session invalidated")
		t.session = nil
	}

	t.backgroundActivity = enabled
	return t.saveFlagsLocked(ctx)
}

// Close останавливает цикл при завершении процесса, не меняя сохраненные флаги
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status возвращает снимок состояния
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := Status{
		State:              t.state,
		Authorization:      t.provider.AuthorizationStatus(),
		UpdatesStarted:     t.updatesStarted.Load(),
		BackgroundActivity: t.backgroundActivity,
		Count:              t.count,
	}
	if t.session != nil {
		status.SessionID = t.session.ID()
	}
	if t.last != nil {
		last := *t.last
		status.LastUpdate = &last
	}
	return status
}

// LastUpdate возвращает последнюю полученную отметку
func (t *Tracker) LastUpdate() (models.LocationUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return models.LocationUpdate{}, false
	}
	return *t.last, true
}

// Subscribe возвращает канал обновлений и функцию отписки.
// Медленный подписчик пропускает обновления, цикл не блокируется.
func (t *Tracker) Subscribe() (<-chan models.LocationUpdate, func()) {
	ch := make(chan models.LocationUpdate, subscriberBuffer)

	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, ch)
			close(ch)
			t.mu.Unlock()
		})
	}
}

func (t *Tracker) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, needPermission bool) {
	log := t.logger.WithField("component", "tracker")

	defer func() {
		cancel()
		pending := t.provider.Drain()
		for _, fix := range pending {
			t.record(fix)
		}
		if len(pending) > 0 {
			log.WithField("pending", len(pending)).Info("Recorded pending location fixes before halt")
		}
		t.mu.Lock()
		t.state = StateIdle
		t.cancel = nil
		t.mu.Unlock()
		close(done)
	}()

	if needPermission {
		status, err := t.requestAuthorization(ctx)
		if err != nil {
			log.WithError(err).Warn("Location permission request did not complete")
			return
		}
		if status != AuthorizationAuthorized {
			log.WithField("authorization", status).Warn("Location permission denied")
			return
		}
		t.mu.Lock()
		t.provider.Open()
		t.state = StateStreaming
		t.mu.Unlock()
	}

	attempt := 0
	for {
		received, err := t.stream(ctx)
		if err == nil {
			log.Info("Location updates stopped")
			return
		}
		if received {
			attempt = 0
		}
		if attempt >= t.opts.MaxRetries {
			log.WithError(err).Error("Location feed failed")
			return
		}

		delay := backoff(t.opts.BaseDelay, attempt)
		attempt++
		log.WithError(err).Warnf("Location feed failed. Retrying in %v. Attempt %d of %d", delay, attempt, t.opts.MaxRetries)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !t.updatesStarted.Load() {
			return
		}
	}
}

func (t *Tracker) requestAuthorization(ctx context.Context) (AuthorizationStatus, error) {
	if t.opts.PermissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.PermissionTimeout)
		defer cancel()
	}
	return t.provider.RequestAuthorization(ctx)
}

// stream читает отметки до остановки (nil) или ошибки потока.
// Отметка, уже полученная от источника, всегда записывается до проверки флага.
func (t *Tracker) stream(ctx context.Context) (bool, error) {
	received := false
	for {
		fix, err := t.provider.Next(ctx)
		if err != nil {
			if !t.updatesStarted.Load() || ctx.Err() != nil {
				return received, nil
			}
			return received, err
		}

		received = true
		t.record(fix)

		if !t.updatesStarted.Load() {
			return received, nil
		}
	}
}

func (t *Tracker) record(fix models.LocationFix) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stationary := fix.Stationary
	if !stationary && t.last != nil && t.opts.StationaryRadius > 0 {
		stationary = distanceMeters(t.last.Fix, fix) < t.opts.StationaryRadius
	}

	t.count++
	update := models.LocationUpdate{
		Fix:        fix,
		Stationary: stationary,
		Count:      t.count,
	}
	t.last = &update

	for ch := range t.subscribers {
		select {
		case ch <- update:
		default:
		}
	}

	t.logger.WithFields(logrus.Fields{
		"component":  "tracker",
		"count":      update.Count,
		"stationary": stationary,
	}).Debug("Location fix recorded")
}

func (t *Tracker) saveFlagsLocked(ctx context.Context) error {
	flags := models.TrackingFlags{
		UpdatesStarted:     t.updatesStarted.Load(),
		BackgroundActivity: t.backgroundActivity,
	}
	if err := t.flags.SaveTrackingFlags(ctx, flags); err != nil {
		return fmt.Errorf("tracker: could not save tracking flags: %w", err)
	}
	return nil
}

// distanceMeters - расстояние по большому кругу между двумя отметками
func distanceMeters(a, b models.LocationFix) float64 {
	from := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	to := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return from.Distance(to).Radians() * earthRadiusMeters
}

// backoff - экспоненциальная задержка со случайной добавкой до половины базы
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base << attempt
	return delay + time.Duration(rand.Int63n(int64(base)/2+1))
}
