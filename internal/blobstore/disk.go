// Package blobstore keeps uploaded media on the local file system.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/models"
)

// URLPrefix is the public prefix of every stored object.
const URLPrefix = "/uploads/media"

const (
	thumbnailDir    = "thumbnails"
	thumbnailPrefix = "thumb-"
)

// ErrOutsideStore is returned for URLs that do not point into the store.
var ErrOutsideStore = errors.New("url does not belong to the media store")

// Disk stores objects as flat files under a root directory.
type Disk struct {
	root   string
	logger *zap.Logger
}

func NewDisk(root string, logger *zap.Logger) (*Disk, error) {
	// Ensure the directories exist
	if err := os.MkdirAll(filepath.Join(root, thumbnailDir), 0770); err != nil {
		return nil, err
	}

	return &Disk{
		root:   root,
		logger: logger,
	}, nil
}

// Root returns the directory objects are written to.
func (d *Disk) Root() string {
	return d.root
}

// Save writes data under a fresh name that keeps the extension of
// suggestedName.
func (d *Disk) Save(ctx context.Context, data []byte, suggestedName string) (models.BlobRef, error) {
	if err := ctx.Err(); err != nil {
		return models.BlobRef{}, err
	}

	ext := strings.ToLower(filepath.Ext(suggestedName))
	filename := uuid.NewString() + ext

	if err := os.WriteFile(filepath.Join(d.root, filename), data, 0660); err != nil {
		return models.BlobRef{}, fmt.Errorf("write object: %w", err)
	}

	ref := models.BlobRef{
		URL:          path.Join(URLPrefix, filename),
		Filename:     filename,
		OriginalName: filepath.Base(suggestedName),
		Size:         int64(len(data)),
		MimeType:     detectMIME(ext, data),
	}

	d.logger.Debug("object saved", zap.String("url", ref.URL), zap.Int64("size", ref.Size))
	return ref, nil
}

// Delete removes the object behind url together with its thumbnail, if one
// was published. A missing object is not an error.
func (d *Disk) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := d.resolve(url)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove object: %w", err)
	}

	if filepath.Dir(p) != filepath.Clean(d.root) {
		return nil
	}
	thumb := ThumbnailURL(filepath.Base(p))
	ok, err := d.Exists(ctx, thumb)
	if err != nil || !ok {
		return err
	}
	d.logger.Debug("removing thumbnail", zap.String("url", thumb))
	return d.Delete(ctx, thumb)
}

// Exists reports whether an object is stored behind url.
func (d *Disk) Exists(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p, err := d.resolve(url)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// ThumbnailURL returns where the thumbnail of filename would be published.
func ThumbnailURL(filename string) string {
	return path.Join(URLPrefix, thumbnailDir, thumbnailPrefix+filename)
}

// resolve maps a public URL onto a file inside root.
func (d *Disk) resolve(url string) (string, error) {
	rel, ok := strings.CutPrefix(url, URLPrefix+"/")
	if !ok || rel == "" {
		return "", ErrOutsideStore
	}

	clean := path.Clean("/" + rel)[1:]
	if clean == "" || clean != rel {
		return "", ErrOutsideStore
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func detectMIME(ext string, data []byte) string {
	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}

	t := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}
