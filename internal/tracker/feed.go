package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shenikar/drive_issue_log/internal/models"
	"github.com/shenikar/drive_issue_log/pkg/e"
)

// AuthorizationStatus - состояние разрешения на геолокацию на устройстве
type AuthorizationStatus string

const (
	AuthorizationNotDetermined AuthorizationStatus = "not_determined"
	AuthorizationDenied        AuthorizationStatus = "denied"
	AuthorizationAuthorized    AuthorizationStatus = "authorized"
)

func (s AuthorizationStatus) IsValid() bool {
	switch s {
	case AuthorizationNotDetermined, AuthorizationDenied, AuthorizationAuthorized:
		return true
	}
	return false
}

// Provider - источник непрерывного потока координат
type Provider interface {
	AuthorizationStatus() AuthorizationStatus
	// RequestAuthorization блокируется, пока статус не определен или не истек ctx
	RequestAuthorization(ctx context.Context) (AuthorizationStatus, error)
	// Open начинает сессию потока, отметки и ошибки прошлых сессий отбрасываются
	Open()
	// Next блокируется до следующей отметки или ошибки потока
	Next(ctx context.Context) (models.LocationFix, error)
	// Drain закрывает сессию и возвращает принятые, но еще не прочитанные отметки
	Drain() []models.LocationFix
}

// DeviceFeed - Provider, который наполняет устройство в машине через HTTP API.
// Отметки и ошибки принимаются только между Open и Drain.
type DeviceFeed struct {
	mu            sync.Mutex
	status        AuthorizationStatus
	statusChanged chan struct{}
	open          bool

	fixes    chan models.LocationFix
	failures chan error
}

// NewDeviceFeed создает поток с буфером на buffer отметок
func NewDeviceFeed(buffer int) *DeviceFeed {
	if buffer < 1 {
		buffer = 1
	}
	return &DeviceFeed{
		status:        AuthorizationNotDetermined,
		statusChanged: make(chan struct{}),
		fixes:         make(chan models.LocationFix, buffer),
		failures:      make(chan error, 1),
	}
}

func (f *DeviceFeed) AuthorizationStatus() AuthorizationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *DeviceFeed) RequestAuthorization(ctx context.Context) (AuthorizationStatus, error) {
	for {
		f.mu.Lock()
		status, changed := f.status, f.statusChanged
		f.mu.Unlock()

		if status != AuthorizationNotDetermined {
			return status, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return status, ctx.Err()
		}
	}
}

// SetAuthorization сохраняет ответ пользователя и будит ожидающих
func (f *DeviceFeed) SetAuthorization(status AuthorizationStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("tracker: unknown authorization status %q: %w", status, e.ErrInvalidInput)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == status {
		return nil
	}
	f.status = status
	close(f.statusChanged)
	f.statusChanged = make(chan struct{})
	return nil
}

// Push принимает отметку от устройства. Без разрешения или вне сессии отметки отклоняются.
func (f *DeviceFeed) Push(fix models.LocationFix) error {
	if !models.ValidCoordinates(fix.Latitude, fix.Longitude) {
		return fmt.Errorf("tracker: coordinates (%f, %f) out of range: %w", fix.Latitude, fix.Longitude, e.ErrInvalidInput)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != AuthorizationAuthorized {
		return fmt.Errorf("tracker: fix rejected: %w", e.ErrPermissionDenied)
	}
	if !f.open {
		return fmt.Errorf("tracker: fix rejected, updates are not streaming: %w", e.ErrConflict)
	}

	select {
	case f.fixes <- fix:
		return nil
	default:
		return fmt.Errorf("tracker: fix rejected: %w", e.ErrFeedFull)
	}
}

// Fail передает в поток ошибку, о которой сообщило устройство
func (f *DeviceFeed) Fail(err error) error {
	if err == nil {
		err = errors.New("location feed failed")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return fmt.Errorf("tracker: feed error ignored, updates are not streaming: %w", e.ErrConflict)
	}
	select {
	case f.failures <- err:
	default:
		// Одна необработанная ошибка уже ждет
	}
	return nil
}

func (f *DeviceFeed) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.discardLocked()
	f.open = true
}

func (f *DeviceFeed) Drain() []models.LocationFix {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.open = false
	var pending []models.LocationFix
	for {
		select {
		case fix := <-f.fixes:
			pending = append(pending, fix)
		default:
			f.discardLocked()
			return pending
		}
	}
}

func (f *DeviceFeed) discardLocked() {
	for {
		select {
		case <-f.fixes:
		case <-f.failures:
		default:
			return
		}
	}
}

func (f *DeviceFeed) Next(ctx context.Context) (models.LocationFix, error) {
	select {
	case fix := <-f.fixes:
		return fix, nil
	case err := <-f.failures:
		return models.LocationFix{}, err
	case <-ctx.Done():
		return models.LocationFix{}, ctx.Err()
	}
}
