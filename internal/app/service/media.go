package service

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

const defaultMediaLimit = 20

// MediaCatalog files uploaded objects under companies and folders. Record
// writes share the namespace's per-company lock so a copied folder path
// cannot go stale under a concurrent rename.
type MediaCatalog struct {
	store     storage.Store
	blobs     BlobStore
	namespace *Namespace
	logger    *zap.Logger
}

func NewMediaCatalog(store storage.Store, blobs BlobStore, namespace *Namespace, logger *zap.Logger) *MediaCatalog {
	return &MediaCatalog{
		store:     store,
		blobs:     blobs,
		namespace: namespace,
		logger:    logger,
	}
}

// folderPath returns the current path of folderID, which must belong to
// companyID. A nil folder means unfiled.
func folderPath(ctx context.Context, tx storage.Store, folderID *string, companyID string) (*string, error) {
	if folderID == nil {
		return nil, nil
	}
	f, err := tx.Folders().Get(ctx, *folderID, companyID)
	if err != nil {
		return nil, notFoundAs(err, "folder not found")
	}
	return models.StringPtr(f.Path), nil
}

// Save records an object that is already in the blob store.
func (c *MediaCatalog) Save(ctx context.Context, ref models.BlobRef, meta models.MediaMetadata) (*models.Media, error) {
	if meta.CompanyID == "" {
		return nil, apperr.Validation("company is required")
	}
	if ref.URL == "" {
		return nil, apperr.Validation("binary object url is required")
	}
	folderID := models.NullIfEmpty(meta.FolderID)

	section := strings.TrimSpace(meta.Section)
	if section == "" {
		section = models.DefaultSection
	}
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = ref.OriginalName
	}
	if title == "" {
		title = ref.Filename
	}

	unlock := c.namespace.locks.Lock(meta.CompanyID)
	defer unlock()

	media := &models.Media{
		CompanyID:   meta.CompanyID,
		FolderID:    folderID,
		Type:        models.ClassifyMIME(ref.MimeType),
		Section:     section,
		Title:       title,
		Description: meta.Description,
		Alt:         meta.Alt,
		Width:       meta.Width,
		Height:      meta.Height,
		BlobRef:     ref,
	}

	err := c.store.WithinTx(ctx, func(tx storage.Store) error {
		path, err := folderPath(ctx, tx, folderID, meta.CompanyID)
		if err != nil {
			return err
		}
		media.Path = path
		return tx.Media().Create(ctx, media)
	})
	if err != nil {
		return nil, apperr.Translate("save media", err)
	}
	return media, nil
}

// Upload stores data in the blob store and records it. Image dimensions
// are read from the data when the metadata carries none. The object is
// removed again when the record cannot be saved.
func (c *MediaCatalog) Upload(ctx context.Context, data []byte, filename string, meta models.MediaMetadata) (*models.Media, error) {
	if len(data) == 0 {
		return nil, apperr.Validation("file is empty")
	}
	if meta.CompanyID == "" {
		return nil, apperr.Validation("company is required")
	}

	ref, err := c.blobs.Save(ctx, data, filename)
	if err != nil {
		return nil, &apperr.OperationError{Op: "upload media", Err: err}
	}

	if models.ClassifyMIME(ref.MimeType) == models.MediaImage && meta.Width == nil && meta.Height == nil {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			meta.Width = &cfg.Width
			meta.Height = &cfg.Height
		}
	}

	media, err := c.Save(ctx, ref, meta)
	if err != nil {
		if delErr := c.blobs.Delete(ctx, ref.URL); delErr != nil {
			c.logger.Error("cannot remove object of failed upload", zap.String("url", ref.URL), zap.Error(delErr))
		}
		return nil, err
	}

	c.logger.Info("media uploaded",
		zap.String("mediaId", media.ID),
		zap.String("type", string(media.Type)),
		zap.Int64("size", media.Size),
	)
	return media, nil
}

func (c *MediaCatalog) Get(ctx context.Context, id, companyID string) (*models.Media, error) {
	m, err := c.store.Media().Get(ctx, id, companyID)
	if err != nil {
		return nil, apperr.Translate("get media", notFoundAs(err, "media not found"))
	}
	return m, nil
}

// Move files the media under folderID, or unfiles it when folderID is nil
// or empty.
func (c *MediaCatalog) Move(ctx context.Context, id, companyID string, folderID *string) (*models.Media, error) {
	folderID = models.NullIfEmpty(folderID)

	unlock := c.namespace.locks.Lock(companyID)
	defer unlock()

	var media *models.Media
	err := c.store.WithinTx(ctx, func(tx storage.Store) error {
		m, err := tx.Media().Get(ctx, id, companyID)
		if err != nil {
			return notFoundAs(err, "media not found")
		}

		path, err := folderPath(ctx, tx, folderID, companyID)
		if err != nil {
			return err
		}

		m.FolderID = folderID
		m.Path = path
		media = m
		return tx.Media().Update(ctx, m)
	})
	if err != nil {
		return nil, apperr.Translate("move media", err)
	}
	return media, nil
}

// Update changes the descriptive fields of a media item. It rereads the
// record under the company lock so a concurrent move or folder rename is
// never written back over.
func (c *MediaCatalog) Update(ctx context.Context, id, companyID string, patch models.MediaPatch) (*models.Media, error) {
	unlock := c.namespace.locks.Lock(companyID)
	defer unlock()

	var media *models.Media
	err := c.store.WithinTx(ctx, func(tx storage.Store) error {
		m, err := tx.Media().Get(ctx, id, companyID)
		if err != nil {
			return notFoundAs(err, "media not found")
		}

		if patch.Title != nil {
			m.Title = *patch.Title
		}
		if patch.Description != nil {
			m.Description = *patch.Description
		}
		if patch.Alt != nil {
			m.Alt = *patch.Alt
		}
		if patch.Section != nil {
			m.Section = strings.TrimSpace(*patch.Section)
			if m.Section == "" {
				m.Section = models.DefaultSection
			}
		}

		media = m
		return tx.Media().Update(ctx, m)
	})
	if err != nil {
		return nil, apperr.Translate("update media", err)
	}
	return media, nil
}

// Delete removes the record, then its object and thumbnail.
func (c *MediaCatalog) Delete(ctx context.Context, id, companyID string) error {
	m, err := c.store.Media().Get(ctx, id, companyID)
	if err != nil {
		return apperr.Translate("delete media", notFoundAs(err, "media not found"))
	}

	if err := c.store.Media().Delete(ctx, m.ID); err != nil {
		return apperr.Translate("delete media", err)
	}

	removeBlobs(ctx, c.blobs, c.logger, *m)
	return nil
}

func (c *MediaCatalog) List(ctx context.Context, filter models.MediaFilter) (*models.MediaPage, error) {
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit, defaultMediaLimit)
	filter.FolderID = models.NullIfEmpty(filter.FolderID)

	items, total, err := c.store.Media().List(ctx, filter)
	if err != nil {
		return nil, apperr.Translate("list media", err)
	}

	return &models.MediaPage{
		Media:      items,
		Pagination: models.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}
