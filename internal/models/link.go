package models

import (
	"time"
)

// Link statuses. Status is free-form; these are the values the resolver
// understands.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusExpired  = "Expired"
)

// LinkKind tells the two link families apart in activity and analytics rows.
type LinkKind string

const (
	KindShortLink   LinkKind = "shortlink"
	KindDigitalLink LinkKind = "digitallink"
)

// ShortLink maps a globally unique short code onto an original URL.
type ShortLink struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"companyId"`
	OriginalURL  string     `json:"originalUrl"`
	ShortCode    string     `json:"shortCode"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Tags         []string   `json:"tags"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	CustomDomain string     `json:"customDomain,omitempty"`
	CategoryID   *string    `json:"categoryId"`
	Clicks       int        `json:"clicks"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// DisplayName is what activity entries call the link.
func (l *ShortLink) DisplayName() string {
	if l.Title != "" {
		return l.Title
	}
	return l.ShortCode
}

// Expired reports whether the link's expiry lies before now.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// ShortLinkInput is the payload of a short link creation.
type ShortLinkInput struct {
	OriginalURL  string     `json:"originalUrl"`
	ShortCode    string     `json:"shortCode"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Tags         []string   `json:"tags"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	CustomDomain string     `json:"customDomain"`
	CategoryID   *string    `json:"categoryId"`
}

// ShortLinkPatch is a partial update; nil fields are left untouched. A
// non-nil empty CategoryID clears the category, as does ClearExpiry for the
// expiry.
type ShortLinkPatch struct {
	OriginalURL  *string    `json:"originalUrl"`
	ShortCode    *string    `json:"shortCode"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Tags         []string   `json:"tags"`
	Status       *string    `json:"status"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	ClearExpiry  bool       `json:"clearExpiry"`
	CustomDomain *string    `json:"customDomain"`
	CategoryID   *string    `json:"categoryId"`
}

// Redirect types of a digital link.
const (
	RedirectCustom   = "custom"
	RedirectStandard = "standard"
)

// DigitalLink binds a GS1 key (or a special page/form/survey target) to a
// redirect destination.
type DigitalLink struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"companyId"`
	GS1Key       *string    `json:"gs1Key"`
	GS1KeyType   *string    `json:"gs1KeyType"`
	GS1URL       *string    `json:"gs1Url"`
	LinkType     string     `json:"linkType,omitempty"`
	RedirectType string     `json:"redirectType"`
	CustomURL    *string    `json:"customUrl"`
	ProductID    *string    `json:"productId"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Tags         []string   `json:"tags"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	CategoryID   *string    `json:"categoryId"`
	Clicks       int        `json:"clicks"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// DisplayName is what activity entries call the link.
func (l *DigitalLink) DisplayName() string {
	if l.Title != "" {
		return l.Title
	}
	if l.GS1Key != nil {
		return *l.GS1Key
	}
	return l.ID
}

// Expired reports whether the link's expiry lies before now.
func (l *DigitalLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// Target is the URL a visitor is redirected to. Standard redirects point at
// the product page under productBase.
func (l *DigitalLink) Target(productBase string) string {
	if l.RedirectType == RedirectStandard && l.ProductID != nil {
		return productBase + "/" + *l.ProductID
	}
	if l.CustomURL != nil {
		return *l.CustomURL
	}
	return ""
}

// DigitalLinkMeta holds the descriptive fields shared by every digital link
// creation request.
type DigitalLinkMeta struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	CategoryID  *string    `json:"categoryId"`
}

// DigitalLinkPatch is a partial update; nil fields are left untouched.
type DigitalLinkPatch struct {
	GS1Key       *string    `json:"gs1Key"`
	GS1KeyType   *string    `json:"gs1KeyType"`
	RedirectType *string    `json:"redirectType"`
	CustomURL    *string    `json:"customUrl"`
	ProductID    *string    `json:"productId"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Tags         []string   `json:"tags"`
	Status       *string    `json:"status"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	ClearExpiry  bool       `json:"clearExpiry"`
	CategoryID   *string    `json:"categoryId"`
}

// LinkFilter narrows link listings.
type LinkFilter struct {
	CompanyID  string
	Status     string
	CategoryID string
	Search     string
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// Sort orders accepted by LinkFilter.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ShortLinkPage is one page of short links.
type ShortLinkPage struct {
	ShortLinks []ShortLink `json:"shortlinks"`
	Pagination Pagination  `json:"pagination"`
}

// DigitalLinkPage is one page of digital links.
type DigitalLinkPage struct {
	DigitalLinks []DigitalLink `json:"digitallinks"`
	Pagination   Pagination    `json:"pagination"`
}

// NullIfEmpty turns "" into nil so optional references are never stored as
// empty foreign keys.
func NullIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

// SpecialKind names the non-GS1 targets a digital link can point at.
type SpecialKind string

const (
	SpecialPage      SpecialKind = "page"
	SpecialForm      SpecialKind = "form"
	SpecialSurvey    SpecialKind = "survey"
	SpecialShortLink SpecialKind = "shortlink"
	SpecialCustom    SpecialKind = "custom"
)

// Valid reports whether k is one of the known special kinds.
func (k SpecialKind) Valid() bool {
	switch k {
	case SpecialPage, SpecialForm, SpecialSurvey, SpecialShortLink, SpecialCustom:
		return true
	}
	return false
}

// DigitalLinkRequest is the identifying part of a digital link creation:
// either a GS1Link or a SpecialLink.
type DigitalLinkRequest interface {
	digitalLinkRequest()
}

// GS1Link identifies a product or asset by its GS1 key. RedirectType
// decides whether CustomURL or ProductID is required.
type GS1Link struct {
	Key          string
	KeyType      string
	RedirectType string
	CustomURL    string
	ProductID    string
}

// SpecialLink points at a page, form, survey or other target and always
// redirects to TargetURL. The GS1 key is optional.
type SpecialLink struct {
	Kind      SpecialKind
	TargetURL string
	Key       string
	KeyType   string
}

func (GS1Link) digitalLinkRequest()     {}
func (SpecialLink) digitalLinkRequest() {}
