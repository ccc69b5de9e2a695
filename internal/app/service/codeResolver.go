// Package service implements the link and media core: the folder namespace,
// the media catalog, short code and GS1 resolution, link lifecycle and
// analytics aggregation.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

// DefaultCodeLength is the length of generated short codes.
const DefaultCodeLength = 6

// codeAlphabet holds the 62 symbols a short code is drawn from.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// CodeResolver generates short codes and maps them back to their links.
// Short codes are unique across all companies.
type CodeResolver struct {
	store  storage.Store
	length int

	// Source supplies the random bytes of generated codes.
	Source io.Reader
	now    func() time.Time
}

// NewCodeResolver creates a resolver generating codes of length symbols.
// A non-positive length selects DefaultCodeLength.
func NewCodeResolver(store storage.Store, length int) *CodeResolver {
	if length < 1 {
		length = DefaultCodeLength
	}
	return &CodeResolver{
		store:  store,
		length: length,
		Source: rand.Reader,
		now:    time.Now,
	}
}

// Generate draws length symbols from the alphabet, one random byte per
// symbol reduced modulo the alphabet size.
func (r *CodeResolver) Generate(length int) (string, error) {
	if length < 1 {
		length = r.length
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r.Source, buf); err != nil {
		return "", &apperr.OperationError{Op: "generate short code", Err: err}
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// NewCode returns an unused code. A collision of the first candidate is
// retried once with a code two symbols longer; a second collision is a
// Conflict the caller may retry.
func (r *CodeResolver) NewCode(ctx context.Context, tx storage.Store) (string, error) {
	for _, length := range []int{r.length, r.length + 2} {
		code, err := r.Generate(length)
		if err != nil {
			return "", err
		}

		taken, err := codeTaken(ctx, tx, code, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", apperr.Conflict("could not generate a unique short code")
}

// EnsureAvailable fails with a Conflict when code belongs to a link other
// than excludeID.
func (r *CodeResolver) EnsureAvailable(ctx context.Context, tx storage.Store, code, excludeID string) error {
	taken, err := codeTaken(ctx, tx, code, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("short code already exists")
	}
	return nil
}

func codeTaken(ctx context.Context, tx storage.Store, code, excludeID string) (bool, error) {
	l, err := tx.ShortLinks().FindByCode(ctx, code)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	default:
		return l.ID != excludeID, nil
	}
}

// Resolve returns the link behind code. Missing, inactive and expired links
// are all reported as NotFound.
func (r *CodeResolver) Resolve(ctx context.Context, code string) (*models.ShortLink, error) {
	if code == "" {
		return nil, apperr.NotFound("link not found")
	}

	l, err := r.store.ShortLinks().FindByCode(ctx, code)
	if err != nil {
		return nil, apperr.Translate("resolve short link", notFoundAs(err, "link not found"))
	}
	if l.Status != models.StatusActive {
		return nil, apperr.NotFound("link is inactive")
	}
	if l.Expired(r.now()) {
		return nil, apperr.NotFound("link has expired")
	}
	return l, nil
}
