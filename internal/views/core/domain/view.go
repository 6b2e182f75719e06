package domain

import "time"

type ViewEvent struct {
	BlogID      int64
	CountryCode string
	ViewerID    *int64
	ViewedAt    time.Time
}
