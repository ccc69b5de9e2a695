// Package storage defines the persistence port consumed by the services and
// ships an in-memory implementation of it.
package storage

import (
	"context"
	"errors"

	"github.com/atinyakov/linkcore/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a unique key.
	ErrConflict = errors.New("already exists")
)

// Store groups the entity stores. WithinTx runs fn against a transactional
// view: either every write made through it is kept or none is.
type Store interface {
	Folders() FolderStore
	Media() MediaStore
	ShortLinks() ShortLinkStore
	DigitalLinks() DigitalLinkStore
	Activities() ActivityStore
	Events() EventStore
	WithinTx(ctx context.Context, fn func(Store) error) error
	PingContext(ctx context.Context) error
}

// FolderStore persists folders. Paths are unique per company.
type FolderStore interface {
	Create(ctx context.Context, f *models.Folder) error
	Get(ctx context.Context, id, companyID string) (*models.Folder, error)
	FindByPath(ctx context.Context, companyID, path string) (*models.Folder, error)
	ListChildren(ctx context.Context, parentID string) ([]models.Folder, error)
	List(ctx context.Context, filter models.FolderFilter) ([]models.Folder, error)
	Update(ctx context.Context, f *models.Folder) error
	Delete(ctx context.Context, id string) error
}

// MediaStore persists media records.
type MediaStore interface {
	Create(ctx context.Context, m *models.Media) error
	Get(ctx context.Context, id, companyID string) (*models.Media, error)
	Update(ctx context.Context, m *models.Media) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.MediaFilter) ([]models.Media, int, error)
	ListByFolders(ctx context.Context, folderIDs []string) ([]models.Media, error)
	ListByCompany(ctx context.Context, companyID string) ([]models.Media, error)
	UpdatePathByFolder(ctx context.Context, folderID, path string) (int, error)
	CountByFolder(ctx context.Context, folderID string) (int, error)
}

// ShortLinkStore persists short links. Short codes are unique across all
// companies.
type ShortLinkStore interface {
	Create(ctx context.Context, l *models.ShortLink) error
	Get(ctx context.Context, id, companyID string) (*models.ShortLink, error)
	FindByCode(ctx context.Context, code string) (*models.ShortLink, error)
	Update(ctx context.Context, l *models.ShortLink) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.LinkFilter) ([]models.ShortLink, int, error)
	CountByCompany(ctx context.Context, companyID string) (int, error)
}

// DigitalLinkStore persists digital links. GS1 URLs are unique per company.
type DigitalLinkStore interface {
	Create(ctx context.Context, l *models.DigitalLink) error
	Get(ctx context.Context, id, companyID string) (*models.DigitalLink, error)
	// FindByURL looks for a link of companyID with gs1URL, ignoring excludeID.
	FindByURL(ctx context.Context, companyID, gs1URL, excludeID string) (*models.DigitalLink, error)
	// FindByPath and FindByKey search every company; they back public
	// resolution.
	FindByPath(ctx context.Context, gs1URL string) (*models.DigitalLink, error)
	FindByKey(ctx context.Context, key string) (*models.DigitalLink, error)
	Update(ctx context.Context, l *models.DigitalLink) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.LinkFilter) ([]models.DigitalLink, int, error)
	CountByCompany(ctx context.Context, companyID string) (int, error)
}

// ActivityStore is the append-only audit log.
type ActivityStore interface {
	Append(ctx context.Context, entries []models.LinkActivity) error
	Recent(ctx context.Context, companyID string, limit int) ([]models.LinkActivity, error)
}

// EventStore is the append-only analytics log.
type EventStore interface {
	Append(ctx context.Context, e *models.AnalyticsEvent) error
	DeleteByLink(ctx context.Context, kind models.LinkKind, linkID string) error
	List(ctx context.Context, q models.EventQuery) ([]models.AnalyticsEvent, error)
	Count(ctx context.Context, q models.EventQuery) (int, error)
	// GroupBy returns raw counts per dimension value. Missing values are
	// reported as "" and the order is unspecified.
	GroupBy(ctx context.Context, q models.EventQuery, dim models.Dimension) ([]models.Bucket, error)
	CountByCompany(ctx context.Context, kind models.LinkKind, companyID string) (int, error)
}
