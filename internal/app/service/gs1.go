package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

// applicationIdentifiers maps GS1 key types to their Application Identifier.
var applicationIdentifiers = map[string]string{
	"GTIN": "01",
	"GLN":  "414",
	"SSCC": "00",
	"GRAI": "8003",
	"GIAI": "8004",
	"GSRN": "8018",
	"GDTI": "253",
	"GINC": "401",
	"GSIN": "402",
}

// ApplicationIdentifier returns the AI of keyType.
func ApplicationIdentifier(keyType string) (string, bool) {
	ai, ok := applicationIdentifiers[keyType]
	return ai, ok
}

// DigitalLinkFormatter builds GS1 Digital Link paths and resolves them.
// Formatted paths are unique per company.
type DigitalLinkFormatter struct {
	store storage.Store
	now   func() time.Time
}

func NewDigitalLinkFormatter(store storage.Store) *DigitalLinkFormatter {
	return &DigitalLinkFormatter{store: store, now: time.Now}
}

// Format returns the "<AI>/<key>" path segment of key.
func (f *DigitalLinkFormatter) Format(key, keyType string) (string, error) {
	ai, ok := ApplicationIdentifier(keyType)
	if !ok {
		return "", apperr.Validation("invalid GS1 key type: %s", keyType)
	}
	if key == "" {
		return "", apperr.Validation("GS1 key is required")
	}
	return ai + "/" + key, nil
}

// EnsureAvailable fails with a Conflict when another link of companyID
// already uses gs1URL.
func (f *DigitalLinkFormatter) EnsureAvailable(ctx context.Context, tx storage.Store, companyID, gs1URL, excludeID string) error {
	_, err := tx.DigitalLinks().FindByURL(ctx, companyID, gs1URL, excludeID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return err
	default:
		return apperr.Conflict("GS1 URL already exists")
	}
}

// Resolve finds the link published under path. An exact GS1 URL match wins;
// a purely numeric path is also looked up as a bare key.
func (f *DigitalLinkFormatter) Resolve(ctx context.Context, path string) (*models.DigitalLink, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, apperr.NotFound("digital link not found")
	}

	l, err := f.store.DigitalLinks().FindByPath(ctx, path)
	if errors.Is(err, storage.ErrNotFound) && isNumeric(path) {
		l, err = f.store.DigitalLinks().FindByKey(ctx, path)
	}
	if err != nil {
		return nil, apperr.Translate("resolve digital link", notFoundAs(err, "digital link not found"))
	}

	if l.Status != models.StatusActive {
		return nil, apperr.NotFound("digital link is inactive")
	}
	if l.Expired(f.now()) {
		return nil, apperr.NotFound("digital link has expired")
	}
	return l, nil
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
