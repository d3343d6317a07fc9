package content

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
)

// PlatformStat aggregates a project's items for one (platform, status) pair.
type PlatformStat struct {
	Platform   string
	Status     string
	Items      int64
	WithText   int64
	WithWords  int64
	TotalWords int64
	Embedded   int64
	Recent     int64
	MidAge     int64
	Old        int64
}

func (r *contentItemRepo) PlatformStats(dbc dbctx.Context, projectID uuid.UUID, asOf time.Time) ([]PlatformStat, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	query, args, err := platformStatsQuery(projectID, asOf)
	if err != nil {
		return nil, err
	}
	var out []PlatformStat
	if err := transaction.WithContext(dbc.Ctx).Raw(query, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// platformStatsQuery buckets publication dates as <6 months, 6-12 months and
// older, relative to asOf.
func platformStatsQuery(projectID uuid.UUID, asOf time.Time) (string, []interface{}, error) {
	sixMonths := asOf.AddDate(0, -6, 0)
	oneYear := asOf.AddDate(-1, 0, 0)
	return sq.Select("platform", "status").
		Column("COUNT(*) AS items").
		Column("COUNT(*) FILTER (WHERE raw_content IS NOT NULL AND raw_content <> '') AS with_text").
		Column("COUNT(word_count) AS with_words").
		Column("COALESCE(SUM(word_count), 0) AS total_words").
		Column("COUNT(embedding) AS embedded").
		Column(sq.Expr("COUNT(*) FILTER (WHERE published_at >= ?) AS recent", sixMonths)).
		Column(sq.Expr("COUNT(*) FILTER (WHERE published_at < ? AND published_at >= ?) AS mid_age", sixMonths, oneYear)).
		Column(sq.Expr("COUNT(*) FILTER (WHERE published_at < ?) AS old", oneYear)).
		From("content_item").
		Where(sq.Eq{"project_id": projectID}).
		GroupBy("platform", "status").
		OrderBy("platform", "status").
		ToSql()
}
