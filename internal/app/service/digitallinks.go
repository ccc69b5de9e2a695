package service

import (
	"context"
	"strings"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

// buildDigitalLink validates req and returns the identifying fields of the
// new link.
func (s *Links) buildDigitalLink(req models.DigitalLinkRequest) (*models.DigitalLink, error) {
	switch r := req.(type) {
	case models.GS1Link:
		key, keyType := strings.TrimSpace(r.Key), strings.TrimSpace(r.KeyType)
		if key == "" {
			return nil, apperr.Validation("GS1 key is required")
		}
		if keyType == "" {
			return nil, apperr.Validation("GS1 key type is required")
		}
		gs1URL, err := s.gs1.Format(key, keyType)
		if err != nil {
			return nil, err
		}

		l := &models.DigitalLink{
			GS1Key:       &key,
			GS1KeyType:   &keyType,
			GS1URL:       &gs1URL,
			RedirectType: r.RedirectType,
		}
		switch r.RedirectType {
		case models.RedirectCustom:
			if r.CustomURL == "" {
				return nil, apperr.Validation("custom URL is required for custom redirect type")
			}
			l.CustomURL = models.StringPtr(r.CustomURL)
		case models.RedirectStandard:
			if r.ProductID == "" {
				return nil, apperr.Validation("product ID is required for standard redirect type")
			}
			l.ProductID = models.StringPtr(r.ProductID)
		case "":
			return nil, apperr.Validation("redirect type is required")
		default:
			return nil, apperr.Validation("invalid redirect type: %s", r.RedirectType)
		}
		return l, nil

	case models.SpecialLink:
		if !r.Kind.Valid() {
			return nil, apperr.Validation("invalid link type: %s", r.Kind)
		}
		if strings.TrimSpace(r.TargetURL) == "" {
			return nil, apperr.Validation("target URL is required for %s links", r.Kind)
		}

		l := &models.DigitalLink{
			LinkType:     string(r.Kind),
			RedirectType: models.RedirectCustom,
			CustomURL:    models.StringPtr(strings.TrimSpace(r.TargetURL)),
			GS1Key:       models.NullIfEmpty(models.StringPtr(strings.TrimSpace(r.Key))),
			GS1KeyType:   models.NullIfEmpty(models.StringPtr(strings.TrimSpace(r.KeyType))),
		}
		if l.GS1Key != nil && l.GS1KeyType != nil {
			gs1URL, err := s.gs1.Format(*l.GS1Key, *l.GS1KeyType)
			if err != nil {
				return nil, err
			}
			l.GS1URL = &gs1URL
		}
		return l, nil

	default:
		return nil, apperr.Validation("unsupported digital link request")
	}
}

// CreateDigitalLink stores a new digital link. When the link carries a GS1
// key its formatted URL must be unused within the company.
func (s *Links) CreateDigitalLink(ctx context.Context, req models.DigitalLinkRequest, meta models.DigitalLinkMeta, companyID, actorID string) (*models.DigitalLink, error) {
	link, err := s.buildDigitalLink(req)
	if err != nil {
		return nil, err
	}

	link.CompanyID = companyID
	link.Title = meta.Title
	link.Description = meta.Description
	link.Tags = tagsOrEmpty(meta.Tags)
	link.Status = statusOrActive(meta.Status)
	link.ExpiresAt = meta.ExpiresAt
	link.CategoryID = models.NullIfEmpty(meta.CategoryID)

	err = s.store.WithinTx(ctx, func(tx storage.Store) error {
		if link.GS1URL != nil {
			if err := s.gs1.EnsureAvailable(ctx, tx, companyID, *link.GS1URL, ""); err != nil {
				return err
			}
		}
		return tx.DigitalLinks().Create(ctx, link)
	})
	if err != nil {
		return nil, apperr.Translate("create digital link", err)
	}

	s.record(ctx, models.KindDigitalLink, models.ActionCreated, companyID, actorID, link.ID, link.DisplayName(), gs1Details(link))
	return link, nil
}

func gs1Details(l *models.DigitalLink) map[string]any {
	return map[string]any{
		"gs1Key":       l.GS1Key,
		"gs1KeyType":   l.GS1KeyType,
		"gs1Url":       l.GS1URL,
		"redirectType": l.RedirectType,
	}
}

func (s *Links) GetDigitalLink(ctx context.Context, id, companyID string) (*models.DigitalLink, error) {
	l, err := s.store.DigitalLinks().Get(ctx, id, companyID)
	if err != nil {
		return nil, apperr.Translate("get digital link", notFoundAs(err, "digital link not found"))
	}
	return l, nil
}

func (s *Links) ListDigitalLinks(ctx context.Context, filter models.LinkFilter) (*models.DigitalLinkPage, error) {
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit, defaultLinkLimit)

	items, total, err := s.store.DigitalLinks().List(ctx, filter)
	if err != nil {
		return nil, apperr.Translate("list digital links", err)
	}
	return &models.DigitalLinkPage{
		DigitalLinks: items,
		Pagination:   models.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func valueOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// UpdateDigitalLink applies patch. The GS1 URL is recomputed only when the
// key or key type actually changes.
func (s *Links) UpdateDigitalLink(ctx context.Context, id, companyID string, patch models.DigitalLinkPatch, actorID string) (*models.DigitalLink, error) {
	var link *models.DigitalLink
	changes := make(map[string]any)

	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		l, err := tx.DigitalLinks().Get(ctx, id, companyID)
		if err != nil {
			return notFoundAs(err, "digital link not found")
		}

		if patch.GS1Key != nil || patch.GS1KeyType != nil {
			key, keyType := valueOf(l.GS1Key), valueOf(l.GS1KeyType)
			if patch.GS1Key != nil {
				key = strings.TrimSpace(*patch.GS1Key)
			}
			if patch.GS1KeyType != nil {
				keyType = strings.TrimSpace(*patch.GS1KeyType)
			}

			if key != valueOf(l.GS1Key) || keyType != valueOf(l.GS1KeyType) {
				l.GS1Key = models.NullIfEmpty(&key)
				l.GS1KeyType = models.NullIfEmpty(&keyType)
				l.GS1URL = nil
				if key != "" && keyType != "" {
					gs1URL, err := s.gs1.Format(key, keyType)
					if err != nil {
						return err
					}
					if err := s.gs1.EnsureAvailable(ctx, tx, companyID, gs1URL, l.ID); err != nil {
						return err
					}
					l.GS1URL = &gs1URL
				}
				changes["gs1Key"] = l.GS1Key
				changes["gs1KeyType"] = l.GS1KeyType
				changes["gs1Url"] = l.GS1URL
			}
		}

		redirectChanged := false
		if patch.RedirectType != nil {
			l.RedirectType = *patch.RedirectType
			changes["redirectType"] = l.RedirectType
			redirectChanged = true
		}
		if patch.CustomURL != nil {
			l.CustomURL = models.NullIfEmpty(patch.CustomURL)
			changes["customUrl"] = l.CustomURL
			redirectChanged = true
		}
		if patch.ProductID != nil {
			l.ProductID = models.NullIfEmpty(patch.ProductID)
			changes["productId"] = l.ProductID
			redirectChanged = true
		}
		if redirectChanged {
			if err := validateRedirect(l); err != nil {
				return err
			}
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
		if patch.CategoryID != nil {
			l.CategoryID = models.NullIfEmpty(patch.CategoryID)
			changes["categoryId"] = l.CategoryID
		}

		link = l
		return tx.DigitalLinks().Update(ctx, l)
	})
	if err != nil {
		return nil, apperr.Translate("update digital link", err)
	}

	s.record(ctx, models.KindDigitalLink, models.ActionUpdated, companyID, actorID, link.ID, link.DisplayName(), changes)
	return link, nil
}

func validateRedirect(l *models.DigitalLink) error {
	switch l.RedirectType {
	case models.RedirectCustom:
		if l.CustomURL == nil {
			return apperr.Validation("custom URL is required for custom redirect type")
		}
	case models.RedirectStandard:
		if l.ProductID == nil {
			return apperr.Validation("product ID is required for standard redirect type")
		}
	default:
		return apperr.Validation("invalid redirect type: %s", l.RedirectType)
	}
	return nil
}

// DeleteDigitalLink logs the deletion, then removes the link's analytics
// events and the link itself.
func (s *Links) DeleteDigitalLink(ctx context.Context, id, companyID, actorID string) error {
	l, err := s.store.DigitalLinks().Get(ctx, id, companyID)
	if err != nil {
		return apperr.Translate("delete digital link", notFoundAs(err, "digital link not found"))
	}

	s.record(ctx, models.KindDigitalLink, models.ActionDeleted, companyID, actorID, l.ID, l.DisplayName(), gs1Details(l))

	err = s.store.WithinTx(ctx, func(tx storage.Store) error {
		if err := tx.Events().DeleteByLink(ctx, models.KindDigitalLink, l.ID); err != nil {
			return err
		}
		return tx.DigitalLinks().Delete(ctx, l.ID)
	})
	if err != nil {
		return apperr.Translate("delete digital link", err)
	}
	return nil
}
