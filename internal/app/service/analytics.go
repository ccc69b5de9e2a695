package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

const defaultEventLimit = 10

// Analytics records resolution events and summarizes them per link.
type Analytics struct {
	store  storage.Store
	codes  *CodeResolver
	gs1    *DigitalLinkFormatter
	logger *zap.Logger
	now    func() time.Time
}

func NewAnalytics(store storage.Store, codes *CodeResolver, gs1 *DigitalLinkFormatter, logger *zap.Logger) *Analytics {
	return &Analytics{
		store:  store,
		codes:  codes,
		gs1:    gs1,
		logger: logger,
		now:    time.Now,
	}
}

// RecordEvent appends one event for the link. Repeat visits are separate
// events.
func (a *Analytics) RecordEvent(ctx context.Context, kind models.LinkKind, linkID, action string, c models.Classification) (*models.AnalyticsEvent, error) {
	if linkID == "" {
		return nil, apperr.Validation("link is required")
	}
	if kind != models.KindShortLink && kind != models.KindDigitalLink {
		return nil, apperr.Validation("unknown link kind: %s", kind)
	}
	if action == "" {
		action = models.EventClick
	}
	if c.VisitorID == "" {
		c.VisitorID = uuid.NewString()
	}

	e := &models.AnalyticsEvent{
		Kind:           kind,
		LinkID:         linkID,
		Action:         action,
		Timestamp:      a.now().UTC(),
		Classification: c,
	}
	if err := a.store.Events().Append(ctx, e); err != nil {
		return nil, apperr.Translate("record analytics event", notFoundAs(err, "link not found"))
	}
	return e, nil
}

// RecordShortLinkVisit resolves code and records a click on it. A failed
// recording is logged; the visitor is still redirected.
func (a *Analytics) RecordShortLinkVisit(ctx context.Context, code string, c models.Classification) (*models.ShortLink, error) {
	l, err := a.codes.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := a.RecordEvent(ctx, models.KindShortLink, l.ID, models.EventClick, c); err != nil {
		a.logger.Warn("cannot record short link click", zap.String("linkId", l.ID), zap.Error(err))
	}
	return l, nil
}

// RecordDigitalLinkVisit resolves path and records a click on it.
func (a *Analytics) RecordDigitalLinkVisit(ctx context.Context, path string, c models.Classification) (*models.DigitalLink, error) {
	l, err := a.gs1.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := a.RecordEvent(ctx, models.KindDigitalLink, l.ID, models.EventClick, c); err != nil {
		a.logger.Warn("cannot record digital link click", zap.String("linkId", l.ID), zap.Error(err))
	}
	return l, nil
}

// ensureOwned fails with NotFound unless the link belongs to companyID.
func (a *Analytics) ensureOwned(ctx context.Context, kind models.LinkKind, linkID, companyID string) error {
	var err error
	switch kind {
	case models.KindShortLink:
		_, err = a.store.ShortLinks().Get(ctx, linkID, companyID)
	case models.KindDigitalLink:
		_, err = a.store.DigitalLinks().Get(ctx, linkID, companyID)
	default:
		return apperr.Validation("unknown link kind: %s", kind)
	}
	return notFoundAs(err, "link not found")
}

// Summarize aggregates the events of a link. TotalCount ignores rng; the
// events page and the breakdowns honor it.
func (a *Analytics) Summarize(ctx context.Context, kind models.LinkKind, linkID, companyID string, rng models.DateRange, page, limit int) (*models.Summary, error) {
	if err := a.ensureOwned(ctx, kind, linkID, companyID); err != nil {
		return nil, apperr.Translate("summarize analytics", err)
	}
	page, limit = models.NormalizePage(page, limit, defaultEventLimit)

	events := a.store.Events()
	all := models.EventQuery{Kind: kind, LinkID: linkID}
	q := models.EventQuery{Kind: kind, LinkID: linkID, Range: rng, Page: page, Limit: limit}

	total, err := events.Count(ctx, all)
	if err != nil {
		return nil, apperr.Translate("summarize analytics", err)
	}
	filtered, err := events.Count(ctx, q)
	if err != nil {
		return nil, apperr.Translate("summarize analytics", err)
	}
	items, err := events.List(ctx, q)
	if err != nil {
		return nil, apperr.Translate("summarize analytics", err)
	}

	s := &models.Summary{
		LinkID:     linkID,
		Kind:       kind,
		TotalCount: total,
		Events:     items,
		Pagination: models.NewPagination(page, limit, filtered),
	}

	grouped := map[models.Dimension]*[]models.Bucket{
		models.DimDate:     &s.GroupedByDate,
		models.DimBrowser:  &s.GroupedByBrowser,
		models.DimDevice:   &s.GroupedByDevice,
		models.DimLocation: &s.GroupedByLocation,
		models.DimReferrer: &s.GroupedByReferrer,
	}
	for _, dim := range models.Dimensions {
		raw, err := events.GroupBy(ctx, q, dim)
		if err != nil {
			return nil, apperr.Translate("summarize analytics", err)
		}
		*grouped[dim] = normalizeBuckets(raw)
	}
	return s, nil
}

// normalizeBuckets merges missing values into Unknown and orders buckets by
// descending count, then ascending value.
func normalizeBuckets(raw []models.Bucket) []models.Bucket {
	counts := make(map[string]int, len(raw))
	for _, b := range raw {
		v := strings.TrimSpace(b.Value)
		if v == "" {
			v = models.UnknownValue
		}
		counts[v] += b.Count
	}

	out := make([]models.Bucket, 0, len(counts))
	for v, n := range counts {
		out = append(out, models.Bucket{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// CompanySummary totals the links of a company and their clicks.
func (a *Analytics) CompanySummary(ctx context.Context, companyID string) (*models.CompanySummary, error) {
	var (
		s   models.CompanySummary
		err error
	)

	if s.TotalShortlinks, err = a.store.ShortLinks().CountByCompany(ctx, companyID); err != nil {
		return nil, apperr.Translate("summarize company", err)
	}
	if s.TotalDigitallinks, err = a.store.DigitalLinks().CountByCompany(ctx, companyID); err != nil {
		return nil, apperr.Translate("summarize company", err)
	}
	if s.TotalShortlinkClicks, err = a.store.Events().CountByCompany(ctx, models.KindShortLink, companyID); err != nil {
		return nil, apperr.Translate("summarize company", err)
	}
	if s.TotalDigitallinkClicks, err = a.store.Events().CountByCompany(ctx, models.KindDigitalLink, companyID); err != nil {
		return nil, apperr.Translate("summarize company", err)
	}

	s.TotalLinks = s.TotalShortlinks + s.TotalDigitallinks
	s.TotalClicks = s.TotalShortlinkClicks + s.TotalDigitallinkClicks
	return &s, nil
}
