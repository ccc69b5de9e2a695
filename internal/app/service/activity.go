package service

import (
	"context"

	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

// DirectRecorder appends every entry synchronously.
type DirectRecorder struct {
	store storage.Store
}

func NewDirectRecorder(store storage.Store) *DirectRecorder {
	return &DirectRecorder{store: store}
}

func (r *DirectRecorder) Record(ctx context.Context, entry models.LinkActivity) error {
	return r.store.Activities().Append(ctx, []models.LinkActivity{entry})
}
