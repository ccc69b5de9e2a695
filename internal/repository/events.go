package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/linkcore/internal/models"
)

const dateExpr = "to_char(ts AT TIME ZONE 'UTC', 'YYYY-MM-DD')"

// Short-link events keep their classification in columns.
var shortLinkDims = map[models.Dimension]string{
	models.DimDate:     dateExpr,
	models.DimBrowser:  "COALESCE(browser, '')",
	models.DimDevice:   "COALESCE(device, '')",
	models.DimLocation: "COALESCE(location, '')",
	models.DimReferrer: "COALESCE(referrer, '')",
}

// Digital-link events keep it in the details payload.
var digitalLinkDims = map[models.Dimension]string{
	models.DimDate:     dateExpr,
	models.DimBrowser:  "COALESCE(details->>'browser', '')",
	models.DimDevice:   "COALESCE(details->>'device', '')",
	models.DimLocation: "COALESCE(details->>'location', '')",
	models.DimReferrer: "COALESCE(details->>'referrer', '')",
}

type eventRepo struct{ *Repository }

func eventTable(kind models.LinkKind) (string, error) {
	switch kind {
	case models.KindShortLink:
		return "shortlink_analytics", nil
	case models.KindDigitalLink:
		return "digitallink_analytics", nil
	default:
		return "", fmt.Errorf("unknown link kind %q", kind)
	}
}

func eventWhere(q models.EventQuery) *where {
	w := &where{}
	w.and("link_id = " + w.arg(q.LinkID))
	if q.Range.From != nil {
		w.and("ts >= " + w.arg(*q.Range.From))
	}
	if q.Range.To != nil {
		w.and("ts <= " + w.arg(*q.Range.To))
	}
	return w
}

func (r *eventRepo) Append(ctx context.Context, e *models.AnalyticsEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	switch e.Kind {
	case models.KindShortLink:
		row := r.q.QueryRowContext(ctx,
			`INSERT INTO shortlink_analytics (link_id, action, ts, visitor_id, browser, device, location, city,
				referrer, ip, user_agent, time_on_page, completion_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id;`,
			e.LinkID, e.Action, e.Timestamp, e.VisitorID, e.Browser, e.Device, e.Location, e.City,
			e.Referrer, e.IP, e.UserAgent, nullableFloat(e.TimeOnPage), nullableFloat(e.CompletionTime),
		)
		return mapError(row.Scan(&e.ID))

	case models.KindDigitalLink:
		details, err := encodeDetails(mergeDetails(e))
		if err != nil {
			return err
		}
		row := r.q.QueryRowContext(ctx,
			"INSERT INTO digitallink_analytics (link_id, action, ts, details) VALUES ($1, $2, $3, $4) RETURNING id;",
			e.LinkID, e.Action, e.Timestamp, details,
		)
		return mapError(row.Scan(&e.ID))

	default:
		return fmt.Errorf("unknown link kind %q", e.Kind)
	}
}

// mergeDetails folds the classification into the free-form payload.
func mergeDetails(e *models.AnalyticsEvent) map[string]any {
	details := make(map[string]any, len(e.Details)+10)
	for k, v := range e.Details {
		details[k] = v
	}

	set := func(key, v string) {
		if v != "" {
			details[key] = v
		}
	}
	set("visitorId", e.VisitorID)
	set(string(models.DimBrowser), e.Browser)
	set(string(models.DimDevice), e.Device)
	set(string(models.DimLocation), e.Location)
	set("city", e.City)
	set(string(models.DimReferrer), e.Referrer)
	set("ip", e.IP)
	set("userAgent", e.UserAgent)
	if e.TimeOnPage != nil {
		details["timeOnPage"] = *e.TimeOnPage
	}
	if e.CompletionTime != nil {
		details["completionTime"] = *e.CompletionTime
	}
	return details
}

func (r *eventRepo) DeleteByLink(ctx context.Context, kind models.LinkKind, linkID string) error {
	table, err := eventTable(kind)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE link_id = $1;", linkID)
	return mapError(err)
}

func (r *eventRepo) List(ctx context.Context, q models.EventQuery) ([]models.AnalyticsEvent, error) {
	page, limit := models.NormalizePage(q.Page, q.Limit, 10)
	w := eventWhere(q)

	switch q.Kind {
	case models.KindShortLink:
		return r.listShortLinkEvents(ctx,
			`SELECT id, link_id, action, ts, visitor_id, browser, device, location, city, referrer, ip, user_agent,
				time_on_page, completion_time
			FROM shortlink_analytics`+w.String()+" ORDER BY ts DESC, id"+w.paginate(page, limit)+";",
			w.args...,
		)
	case models.KindDigitalLink:
		return r.listDigitalLinkEvents(ctx,
			"SELECT id, link_id, action, ts, details FROM digitallink_analytics"+w.String()+
				" ORDER BY ts DESC, id"+w.paginate(page, limit)+";",
			w.args...,
		)
	default:
		return nil, fmt.Errorf("unknown link kind %q", q.Kind)
	}
}

func (r *eventRepo) listShortLinkEvents(ctx context.Context, query string, args ...any) ([]models.AnalyticsEvent, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	events := make([]models.AnalyticsEvent, 0)
	for rows.Next() {
		var (
			e                                  models.AnalyticsEvent
			visitor, browser, device, location sql.NullString
			city, referrer, ip, userAgent      sql.NullString
			timeOnPage, completionTime         sql.NullFloat64
		)
		err := rows.Scan(&e.ID, &e.LinkID, &e.Action, &e.Timestamp, &visitor, &browser, &device, &location,
			&city, &referrer, &ip, &userAgent, &timeOnPage, &completionTime)
		if err != nil {
			return nil, err
		}

		e.Kind = models.KindShortLink
		e.Classification = models.Classification{
			VisitorID:      visitor.String,
			Browser:        browser.String,
			Device:         device.String,
			Location:       location.String,
			City:           city.String,
			Referrer:       referrer.String,
			IP:             ip.String,
			UserAgent:      userAgent.String,
			TimeOnPage:     floatPtr(timeOnPage),
			CompletionTime: floatPtr(completionTime),
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepo) listDigitalLinkEvents(ctx context.Context, query string, args ...any) ([]models.AnalyticsEvent, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	events := make([]models.AnalyticsEvent, 0)
	for rows.Next() {
		var (
			e   models.AnalyticsEvent
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.LinkID, &e.Action, &e.Timestamp, &raw); err != nil {
			return nil, err
		}
		if e.Details, err = decodeDetails(raw); err != nil {
			return nil, err
		}
		e.Kind = models.KindDigitalLink
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepo) Count(ctx context.Context, q models.EventQuery) (int, error) {
	table, err := eventTable(q.Kind)
	if err != nil {
		return 0, err
	}

	w := eventWhere(q)
	var n int
	err = r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+w.String()+";", w.args...).Scan(&n)
	return n, mapError(err)
}

func (r *eventRepo) GroupBy(ctx context.Context, q models.EventQuery, dim models.Dimension) ([]models.Bucket, error) {
	table, err := eventTable(q.Kind)
	if err != nil {
		return nil, err
	}

	dims := shortLinkDims
	if q.Kind == models.KindDigitalLink {
		dims = digitalLinkDims
	}
	expr, ok := dims[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	w := eventWhere(q)
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+expr+" AS value, COUNT(*) FROM "+table+w.String()+" GROUP BY 1;",
		w.args...,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	buckets := make([]models.Bucket, 0)
	for rows.Next() {
		var b models.Bucket
		if err := rows.Scan(&b.Value, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func (r *eventRepo) CountByCompany(ctx context.Context, kind models.LinkKind, companyID string) (int, error) {
	var query string
	switch kind {
	case models.KindShortLink:
		query = "SELECT COUNT(*) FROM shortlink_analytics a JOIN short_links l ON l.id = a.link_id WHERE l.company_id = $1;"
	case models.KindDigitalLink:
		query = "SELECT COUNT(*) FROM digitallink_analytics a JOIN digital_links l ON l.id = a.link_id WHERE l.company_id = $1;"
	default:
		return 0, fmt.Errorf("unknown link kind %q", kind)
	}

	var n int
	err := r.q.QueryRowContext(ctx, query, companyID).Scan(&n)
	return n, mapError(err)
}
