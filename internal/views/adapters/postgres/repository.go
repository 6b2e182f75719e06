package postgres

import (
	"context"
	"fmt"

	"view-analytics-service/internal/views/core/domain"
	"view-analytics-service/internal/views/core/ports"
)

type ViewRepository struct {
	db DB
}

func NewViewRepository(db DB) *ViewRepository {
	return &ViewRepository{db: db}
}

var _ ports.ViewWriterPort = (*ViewRepository)(nil)

// The author is copied from the blog. Joining against blogs and countries
// turns a dangling reference into zero inserted rows.
const insertViewSQL = `
INSERT INTO view_events (
    blog_id,
    author_id,
    country_code,
    viewer_id,
    viewed_at
)
SELECT b.id, b.author_id, c.code, $3, $4
FROM blogs b
JOIN countries c ON c.code = $2
WHERE b.id = $1;
`

func (r *ViewRepository) InsertView(ctx context.Context, v *domain.ViewEvent) error {

	var viewerID any
	if v.ViewerID != nil {
		viewerID = *v.ViewerID
	}

	res, err := r.db.ExecContext(ctx, insertViewSQL,
		v.BlogID,
		v.CountryCode,
		viewerID,
		v.ViewedAt.UTC(),
	)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	// rows == 1 -> stored
	// rows == 0 -> blog or country does not exist
	if rows == 0 {
		return fmt.Errorf("%w: blog %d or country %q", ports.ErrUnknownReference, v.BlogID, v.CountryCode)
	}
	return nil
}
