package service

import (
	"context"

	"github.com/atinyakov/linkcore/internal/models"
)

//go:generate mockgen -destination=../../mocks/mock_blobstore.go -package=mocks github.com/atinyakov/linkcore/internal/app/service BlobStore
//go:generate mockgen -destination=../../mocks/mock_activity.go -package=mocks github.com/atinyakov/linkcore/internal/app/service ActivityRecorder

// BlobStore keeps the bytes behind media records.
type BlobStore interface {
	Save(ctx context.Context, data []byte, suggestedName string) (models.BlobRef, error)
	Delete(ctx context.Context, url string) error
	Exists(ctx context.Context, url string) (bool, error)
}

// ActivityRecorder receives audit entries after the mutation they describe
// has been committed. Its failures never fail the mutation.
type ActivityRecorder interface {
	Record(ctx context.Context, entry models.LinkActivity) error
}
