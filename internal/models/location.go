package models

import "time"

// LocationFix представляет одну отметку местоположения от устройства
type LocationFix struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Altitude           float64   `json:"altitude,omitempty"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy,omitempty"`
	Speed              float64   `json:"speed,omitempty"`
	Course             float64   `json:"course,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	Stationary         bool      `json:"stationary,omitempty"`
}

// LocationUpdate - опубликованное трекером состояние после очередной отметки
type LocationUpdate struct {
	Fix        LocationFix `json:"fix"`
	Stationary bool        `json:"stationary"`
	Count      int64       `json:"count"`
}

// TrackingFlags - два флага, переживающие перезапуск процесса
type TrackingFlags struct {
	UpdatesStarted     bool `json:"updatesStarted"`
	BackgroundActivity bool `json:"backgroundActivity"`
}
