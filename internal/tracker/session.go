package tracker

import (
	"context"

	"github.com/shenikar/drive_issue_log/internal/models"
)

// Session - дескриптор фоновой активности, удерживающий поток координат
type Session interface {
	ID() string
	Invalidate(ctx context.Context) error
}

// SessionProvider выделяет дескрипторы фоновой активности
type SessionProvider interface {
	Begin(ctx context.Context) (Session, error)
}

// FlagStore хранит флаги трекера между перезапусками
type FlagStore interface {
	GetTrackingFlags(ctx context.Context) (models.TrackingFlags, error)
	SaveTrackingFlags(ctx context.Context, flags models.TrackingFlags) error
}
