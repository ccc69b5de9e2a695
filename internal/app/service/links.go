package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

const (
	defaultLinkLimit     = 10
	defaultActivityLimit = 5
)

// Links creates, updates and deletes short links and digital links. Every
// committed mutation is followed by an activity entry whose failure is
// logged and never fails the mutation.
type Links struct {
	store    storage.Store
	codes    *CodeResolver
	gs1      *DigitalLinkFormatter
	activity ActivityRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewLinks(store storage.Store, codes *CodeResolver, gs1 *DigitalLinkFormatter, activity ActivityRecorder, logger *zap.Logger) *Links {
	return &Links{
		store:    store,
		codes:    codes,
		gs1:      gs1,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// record appends an activity entry, logging instead of returning failures.
func (s *Links) record(ctx context.Context, kind models.LinkKind, action, companyID, actorID, itemID, itemName string, details map[string]any) {
	entry := models.LinkActivity{
		Kind:      kind,
		Action:    action,
		Timestamp: s.now().UTC(),
		ActorID:   actorID,
		CompanyID: companyID,
		ItemID:    itemID,
		ItemName:  itemName,
		Details:   details,
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn("cannot record link activity",
			zap.String("linkId", itemID),
			zap.String("kind", string(kind)),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func statusOrActive(status string) string {
	if status = strings.TrimSpace(status); status == "" {
		return models.StatusActive
	}
	return status
}

// CreateShortLink stores a new short link. A caller-supplied code must be
// unused; otherwise one is generated.
func (s *Links) CreateShortLink(ctx context.Context, in models.ShortLinkInput, companyID, actorID string) (*models.ShortLink, error) {
	originalURL := strings.TrimSpace(in.OriginalURL)
	if originalURL == "" {
		return nil, apperr.Validation("original URL is required")
	}

	link := &models.ShortLink{
		CompanyID:    companyID,
		OriginalURL:  originalURL,
		ShortCode:    strings.TrimSpace(in.ShortCode),
		Title:        in.Title,
		Description:  in.Description,
		Tags:         tagsOrEmpty(in.Tags),
		Status:       statusOrActive(in.Status),
		ExpiresAt:    in.ExpiresAt,
		CustomDomain: in.CustomDomain,
		CategoryID:   models.NullIfEmpty(in.CategoryID),
	}

	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		if link.ShortCode != "" {
			if err := s.codes.EnsureAvailable(ctx, tx, link.ShortCode, ""); err != nil {
				return err
			}
		} else {
			code, err := s.codes.NewCode(ctx, tx)
			if err != nil {
				return err
			}
			link.ShortCode = code
		}
		return tx.ShortLinks().Create(ctx, link)
	})
	if err != nil {
		return nil, apperr.Translate("create short link", err)
	}

	s.record(ctx, models.KindShortLink, models.ActionCreated, companyID, actorID, link.ID, link.DisplayName(), map[string]any{
		"originalUrl": link.OriginalURL,
		"shortCode":   link.ShortCode,
	})
	return link, nil
}

func (s *Links) GetShortLink(ctx context.Context, id, companyID string) (*models.ShortLink, error) {
	l, err := s.store.ShortLinks().Get(ctx, id, companyID)
	if err != nil {
		return nil, apperr.Translate("get short link", notFoundAs(err, "short link not found"))
	}
	return l, nil
}

func (s *Links) ListShortLinks(ctx context.Context, filter models.LinkFilter) (*models.ShortLinkPage, error) {
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit, defaultLinkLimit)

	items, total, err := s.store.ShortLinks().List(ctx, filter)
	if err != nil {
		return nil, apperr.Translate("list short links", err)
	}
	return &models.ShortLinkPage{
		ShortLinks: items,
		Pagination: models.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// UpdateShortLink applies patch. A changed short code must not belong to
// another link.
func (s *Links) UpdateShortLink(ctx context.Context, id, companyID string, patch models.ShortLinkPatch, actorID string) (*models.ShortLink, error) {
	var link *models.ShortLink
	changes := make(map[string]any)

	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		l, err := tx.ShortLinks().Get(ctx, id, companyID)
		if err != nil {
			return notFoundAs(err, "short link not found")
		}

		if patch.ShortCode != nil {
			code := strings.TrimSpace(*patch.ShortCode)
			if code == "" {
				return apperr.Validation("short code must not be empty")
			}
			if code != l.ShortCode {
				if err := s.codes.EnsureAvailable(ctx, tx, code, l.ID); err != nil {
					return err
				}
				l.ShortCode = code
				changes["shortCode"] = code
			}
		}
		if patch.OriginalURL != nil {
			u := strings.TrimSpace(*patch.OriginalURL)
			if u == "" {
				return apperr.Validation("original URL is required")
			}
			l.OriginalURL = u
			changes["originalUrl"] = u
		}
		if patch.Title != nil {
			l.Title = *patch.Title
			changes["title"] = l.Title
		}
		if patch.Description != nil {
			l.Description = *patch.Description
			changes["description"] = l.Description
		}
		if patch.Tags != nil {
			l.Tags = patch.Tags
			changes["tags"] = l.Tags
		}
		if patch.Status != nil {
			l.Status = *patch.Status
			changes["status"] = l.Status
		}
		if patch.ClearExpiry {
			l.ExpiresAt = nil
			changes["expiresAt"] = nil
		} else if patch.ExpiresAt != nil {
			l.ExpiresAt = patch.ExpiresAt
			changes["expiresAt"] = *patch.ExpiresAt
		}
		if patch.CustomDomain != nil {
			l.CustomDomain = *patch.CustomDomain
			changes["customDomain"] = l.CustomDomain
		}
		if patch.CategoryID != nil {
			l.CategoryID = models.NullIfEmpty(patch.CategoryID)
			changes["categoryId"] = l.CategoryID
		}

		link = l
		return tx.ShortLinks().Update(ctx, l)
	})
	if err != nil {
		return nil, apperr.Translate("update short link", err)
	}

	s.record(ctx, models.KindShortLink, models.ActionUpdated, companyID, actorID, link.ID, link.DisplayName(), changes)
	return link, nil
}

// DeleteShortLink logs the deletion, then removes the link's analytics
// events and the link itself.
func (s *Links) DeleteShortLink(ctx context.Context, id, companyID, actorID string) error {
	l, err := s.store.ShortLinks().Get(ctx, id, companyID)
	if err != nil {
		return apperr.Translate("delete short link", notFoundAs(err, "short link not found"))
	}

	s.record(ctx, models.KindShortLink, models.ActionDeleted, companyID, actorID, l.ID, l.DisplayName(), map[string]any{
		"originalUrl": l.OriginalURL,
		"shortCode":   l.ShortCode,
	})

	err = s.store.WithinTx(ctx, func(tx storage.Store) error {
		if err := tx.Events().DeleteByLink(ctx, models.KindShortLink, l.ID); err != nil {
			return err
		}
		return tx.ShortLinks().Delete(ctx, l.ID)
	})
	if err != nil {
		return apperr.Translate("delete short link", err)
	}
	return nil
}

// RecentActivity returns the latest activity entries of a company.
func (s *Links) RecentActivity(ctx context.Context, companyID string, limit int) ([]models.LinkActivity, error) {
	if limit < 1 {
		limit = defaultActivityLimit
	}
	items, err := s.store.Activities().Recent(ctx, companyID, limit)
	if err != nil {
		return nil, apperr.Translate("list link activity", err)
	}
	return items, nil
}
