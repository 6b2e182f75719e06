package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"view-analytics-service/internal/views/core/domain"
	"view-analytics-service/internal/views/core/ports"
)

var (
	ErrInvalidView = errors.New("invalid view")
	ErrFutureTime  = errors.New("timestamp cannot be in the future")
)

type RecordViewUseCase struct {
	repo ports.ViewWriterPort
	now  func() time.Time
}

func NewRecordViewUseCase(repo ports.ViewWriterPort) *RecordViewUseCase {
	return &RecordViewUseCase{repo: repo, now: time.Now}
}

type RecordViewInput struct {
	BlogID      int64
	CountryCode string
	ViewerID    *int64
	Timestamp   int64 // unix seconds, 0 means now
}

func (uc *RecordViewUseCase) Execute(ctx context.Context, in RecordViewInput) error {
	now := uc.now()
	if err := validateInput(in, now); err != nil {
		return err
	}
	return uc.repo.InsertView(ctx, toView(in, now))
}

type BulkRecordInput struct {
	Views []RecordViewInput
}

type BulkRecordResult struct {
	Recorded int
}

// BulkRecord validates every view before storing any of them. Storage stops
// at the first failure; Recorded counts the views stored before it.
func (uc *RecordViewUseCase) BulkRecord(ctx context.Context, in BulkRecordInput) (BulkRecordResult, error) {
	var res BulkRecordResult

	now := uc.now()
	for i, v := range in.Views {
		if err := validateInput(v, now); err != nil {
			return res, fmt.Errorf("views[%d]: %w", i, err)
		}
	}

	for i, v := range in.Views {
		if err := uc.repo.InsertView(ctx, toView(v, now)); err != nil {
			return res, fmt.Errorf("views[%d]: %w", i, err)
		}
		res.Recorded++
	}

	return res, nil
}

func toView(in RecordViewInput, now time.Time) *domain.ViewEvent {
	viewedAt := now.UTC()
	if in.Timestamp != 0 {
		viewedAt = time.Unix(in.Timestamp, 0).UTC()
	}
	return &domain.ViewEvent{
		BlogID:      in.BlogID,
		CountryCode: strings.ToUpper(strings.TrimSpace(in.CountryCode)),
		ViewerID:    in.ViewerID,
		ViewedAt:    viewedAt,
	}
}

func validateInput(in RecordViewInput, now time.Time) error {
	if in.BlogID <= 0 {
		return fmt.Errorf("%w: blog_id must be positive", ErrInvalidView)
	}
	if code := strings.TrimSpace(in.CountryCode); code == "" || len(code) > 3 {
		return fmt.Errorf("%w: country_code %q", ErrInvalidView, in.CountryCode)
	}
	if in.ViewerID != nil && *in.ViewerID <= 0 {
		return fmt.Errorf("%w: viewer_id must be positive", ErrInvalidView)
	}
	if in.Timestamp < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidView)
	}
	if in.Timestamp > now.Unix() {
		return ErrFutureTime
	}
	return nil
}
