package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnknownValue buckets events that lack a value for a dimension.
const UnknownValue = "Unknown"

// Event actions.
const (
	EventClick = "click"
	EventView  = "view"
)

// Dimension is a grouping axis of AnalyticsEvent summaries.
type Dimension string

const (
	DimDate     Dimension = "date"
	DimBrowser  Dimension = "browser"
	DimDevice   Dimension = "device"
	DimLocation Dimension = "location"
	DimReferrer Dimension = "referrer"
)

// Dimensions lists the breakdowns every summary carries.
var Dimensions = []Dimension{DimDate, DimBrowser, DimDevice, DimLocation, DimReferrer}

// DateLayout formats the date dimension.
const DateLayout = "2006-01-02"

// Classification is what a resolution request tells about its visitor.
type Classification struct {
	VisitorID      string   `json:"visitorId,omitempty"`
	Browser        string   `json:"browser,omitempty"`
	Device         string   `json:"device,omitempty"`
	Location       string   `json:"location,omitempty"`
	City           string   `json:"city,omitempty"`
	Referrer       string   `json:"referrer,omitempty"`
	IP             string   `json:"ip,omitempty"`
	UserAgent      string   `json:"userAgent,omitempty"`
	TimeOnPage     *float64 `json:"timeOnPage,omitempty"`
	CompletionTime *float64 `json:"completionTime,omitempty"`
}

// AnalyticsEvent is one recorded click or view. Digital-link events keep the
// classification in Details only; Value handles both shapes.
type AnalyticsEvent struct {
	ID        string    `json:"id"`
	Kind      LinkKind  `json:"kind"`
	LinkID    string    `json:"linkId"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Classification
	Details map[string]any `json:"details,omitempty"`
}

// Value returns the event's value for dim, or "" when the event has none.
func (e *AnalyticsEvent) Value(dim Dimension) string {
	var v string
	switch dim {
	case DimDate:
		if e.Timestamp.IsZero() {
			return ""
		}
		return e.Timestamp.UTC().Format(DateLayout)
	case DimBrowser:
		v = e.Browser
	case DimDevice:
		v = e.Device
	case DimLocation:
		v = e.Location
	case DimReferrer:
		v = e.Referrer
	}
	if v != "" {
		return v
	}
	if s, ok := e.Details[string(dim)].(string); ok {
		return s
	}
	return ""
}

// DateRange bounds an analytics query; nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// EventQuery selects the events of one link.
type EventQuery struct {
	Kind   LinkKind
	LinkID string
	Range  DateRange
	Page   int
	Limit  int
}

// Bucket is the event count for one value of a dimension.
type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Summary is the aggregated view of a link's events.
type Summary struct {
	LinkID            string           `json:"linkId"`
	Kind              LinkKind         `json:"kind"`
	TotalCount        int              `json:"totalCount"`
	Events            []AnalyticsEvent `json:"events"`
	Pagination        Pagination       `json:"pagination"`
	GroupedByDate     []Bucket         `json:"groupedByDate"`
	GroupedByBrowser  []Bucket         `json:"groupedByBrowser"`
	GroupedByDevice   []Bucket         `json:"groupedByDevice"`
	GroupedByLocation []Bucket         `json:"groupedByLocation"`
	GroupedByReferrer []Bucket         `json:"groupedByReferrer"`
}

// keyedBuckets renders buckets as {"<dimension>": value, "count": n}.
func keyedBuckets(dim Dimension, buckets []Bucket) []map[string]any {
	out := make([]map[string]any, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, map[string]any{string(dim): b.Value, "count": b.Count})
	}
	return out
}

func unkeyedBuckets(dim Dimension, raw []map[string]json.RawMessage) ([]Bucket, error) {
	if raw == nil {
		return nil, nil
	}
	out := make([]Bucket, 0, len(raw))
	for _, m := range raw {
		var b Bucket
		v, ok := m[string(dim)]
		if !ok {
			return nil, fmt.Errorf("%s bucket without %q", dim, dim)
		}
		if err := json.Unmarshal(v, &b.Value); err != nil {
			return nil, err
		}
		if c, ok := m["count"]; ok {
			if err := json.Unmarshal(c, &b.Count); err != nil {
				return nil, err
			}
		}
		out = append(out, b)
	}
	return out, nil
}

type plainSummary Summary

type summaryJSON struct {
	plainSummary
	GroupedByDate     []map[string]any `json:"groupedByDate"`
	GroupedByBrowser  []map[string]any `json:"groupedByBrowser"`
	GroupedByDevice   []map[string]any `json:"groupedByDevice"`
	GroupedByLocation []map[string]any `json:"groupedByLocation"`
	GroupedByReferrer []map[string]any `json:"groupedByReferrer"`
}

// MarshalJSON keys every breakdown entry by its dimension, e.g.
// {"browser":"Chrome","count":2}.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		plainSummary:      plainSummary(s),
		GroupedByDate:     keyedBuckets(DimDate, s.GroupedByDate),
		GroupedByBrowser:  keyedBuckets(DimBrowser, s.GroupedByBrowser),
		GroupedByDevice:   keyedBuckets(DimDevice, s.GroupedByDevice),
		GroupedByLocation: keyedBuckets(DimLocation, s.GroupedByLocation),
		GroupedByReferrer: keyedBuckets(DimReferrer, s.GroupedByReferrer),
	})
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	var raw struct {
		plainSummary
		GroupedByDate     []map[string]json.RawMessage `json:"groupedByDate"`
		GroupedByBrowser  []map[string]json.RawMessage `json:"groupedByBrowser"`
		GroupedByDevice   []map[string]json.RawMessage `json:"groupedByDevice"`
		GroupedByLocation []map[string]json.RawMessage `json:"groupedByLocation"`
		GroupedByReferrer []map[string]json.RawMessage `json:"groupedByReferrer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Summary(raw.plainSummary)
	for dim, dst := range map[Dimension]struct {
		raw []map[string]json.RawMessage
		out *[]Bucket
	}{
		DimDate:     {raw.GroupedByDate, &s.GroupedByDate},
		DimBrowser:  {raw.GroupedByBrowser, &s.GroupedByBrowser},
		DimDevice:   {raw.GroupedByDevice, &s.GroupedByDevice},
		DimLocation: {raw.GroupedByLocation, &s.GroupedByLocation},
		DimReferrer: {raw.GroupedByReferrer, &s.GroupedByReferrer},
	} {
		buckets, err := unkeyedBuckets(dim, dst.raw)
		if err != nil {
			return err
		}
		*dst.out = buckets
	}
	return nil
}

// CompanySummary is the dashboard roll-up of a company's links.
type CompanySummary struct {
	TotalLinks             int `json:"totalLinks"`
	TotalShortlinks        int `json:"totalShortlinks"`
	TotalDigitallinks      int `json:"totalDigitallinks"`
	TotalClicks            int `json:"totalClicks"`
	TotalShortlinkClicks   int `json:"totalShortlinkClicks"`
	TotalDigitallinkClicks int `json:"totalDigitallinkClicks"`
}
