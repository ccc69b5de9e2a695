package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

// Namespace maintains the folder hierarchy of every company. Mutations of
// one company are serialized and each runs in a single transaction; child
// paths are always recomputed from the parent's current path.
type Namespace struct {
	store  storage.Store
	blobs  BlobStore
	logger *zap.Logger
	locks  *keyedMutex
}

func NewNamespace(store storage.Store, blobs BlobStore, logger *zap.Logger) *Namespace {
	return &Namespace{
		store:  store,
		blobs:  blobs,
		logger: logger,
		locks:  newKeyedMutex(),
	}
}

func validateFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("folder name is required")
	}
	if strings.Contains(name, models.PathSeparator) {
		return "", apperr.Validation("folder name must not contain %q", models.PathSeparator)
	}
	return name, nil
}

// notFoundAs replaces storage.ErrNotFound with a NotFound carrying msg.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("%s", msg)
	}
	return err
}

// parentPath returns the path children of parentID are placed under.
func parentPath(ctx context.Context, tx storage.Store, parentID *string, companyID string) (string, error) {
	if parentID == nil {
		return "", nil
	}
	parent, err := tx.Folders().Get(ctx, *parentID, companyID)
	if err != nil {
		return "", notFoundAs(err, "parent folder not found")
	}
	return parent.Path, nil
}

// ensurePathFree fails with a Conflict when another folder of the company
// already uses path.
func ensurePathFree(ctx context.Context, tx storage.Store, companyID, path, selfID string) error {
	existing, err := tx.Folders().FindByPath(ctx, companyID, path)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == selfID:
		return nil
	default:
		return apperr.Conflict("a folder with path %q already exists", path)
	}
}

func (n *Namespace) CreateFolder(ctx context.Context, companyID, name string, parentID *string) (*models.Folder, error) {
	name, err := validateFolderName(name)
	if err != nil {
		return nil, err
	}
	parentID = models.NullIfEmpty(parentID)

	unlock := n.locks.Lock(companyID)
	defer unlock()

	var folder *models.Folder
	err = n.store.WithinTx(ctx, func(tx storage.Store) error {
		base, err := parentPath(ctx, tx, parentID, companyID)
		if err != nil {
			return err
		}

		path := models.ChildPath(base, name)
		if err := ensurePathFree(ctx, tx, companyID, path, ""); err != nil {
			return err
		}

		folder = &models.Folder{
			CompanyID: companyID,
			Name:      name,
			Path:      path,
			ParentID:  parentID,
		}
		return tx.Folders().Create(ctx, folder)
	})
	if err != nil {
		return nil, apperr.Translate("create folder", err)
	}

	n.logger.Debug("folder created", zap.String("folderId", folder.ID), zap.String("path", folder.Path))
	return folder, nil
}

func (n *Namespace) GetFolder(ctx context.Context, id, companyID string) (*models.Folder, error) {
	f, err := n.store.Folders().Get(ctx, id, companyID)
	if err != nil {
		return nil, apperr.Translate("get folder", notFoundAs(err, "folder not found"))
	}
	return f, nil
}

func (n *Namespace) ListFolders(ctx context.Context, filter models.FolderFilter) ([]models.Folder, error) {
	filter.ParentID = models.NullIfEmpty(filter.ParentID)
	folders, err := n.store.Folders().List(ctx, filter)
	if err != nil {
		return nil, apperr.Translate("list folders", err)
	}
	return folders, nil
}

// FolderChange describes an edit of a folder. With Move set the folder is
// re-parented under ParentID, or moved to the top level when ParentID is nil
// or empty.
type FolderChange struct {
	Name     *string
	Move     bool
	ParentID *string
}

// RenameFolder renames a folder and rewrites the paths of its subtree and of
// the media filed in it. Renaming to the current name changes nothing.
func (n *Namespace) RenameFolder(ctx context.Context, id, companyID, newName string) (*models.Folder, error) {
	return n.update(ctx, "rename folder", id, companyID, FolderChange{Name: &newName})
}

// MoveFolder re-parents a folder; a nil or empty newParentID moves it to
// the top level.
func (n *Namespace) MoveFolder(ctx context.Context, id, companyID string, newParentID *string) (*models.Folder, error) {
	return n.update(ctx, "move folder", id, companyID, FolderChange{Move: true, ParentID: newParentID})
}

// UpdateFolder applies a rename and a move in one transaction: either both
// take effect or neither does.
func (n *Namespace) UpdateFolder(ctx context.Context, id, companyID string, ch FolderChange) (*models.Folder, error) {
	if ch.Name == nil && !ch.Move {
		return nil, apperr.Validation("nothing to update")
	}
	return n.update(ctx, "update folder", id, companyID, ch)
}

func (n *Namespace) update(ctx context.Context, op, id, companyID string, ch FolderChange) (*models.Folder, error) {
	var name string
	if ch.Name != nil {
		var err error
		if name, err = validateFolderName(*ch.Name); err != nil {
			return nil, err
		}
	}
	parentID := models.NullIfEmpty(ch.ParentID)

	unlock := n.locks.Lock(companyID)
	defer unlock()

	var folder *models.Folder
	err := n.store.WithinTx(ctx, func(tx storage.Store) error {
		f, err := tx.Folders().Get(ctx, id, companyID)
		if err != nil {
			return notFoundAs(err, "folder not found")
		}
		folder = f

		changed := false
		if ch.Name != nil && f.Name != name {
			f.Name = name
			changed = true
		}
		if ch.Move && !sameRef(f.ParentID, parentID) {
			if parentID != nil {
				if err := n.ensureNotDescendant(ctx, tx, f.ID, *parentID, companyID); err != nil {
					return err
				}
			}
			f.ParentID = parentID
			changed = true
		}
		if !changed {
			return nil
		}

		base, err := parentPath(ctx, tx, f.ParentID, companyID)
		if err != nil {
			return err
		}
		f.Path = models.ChildPath(base, f.Name)
		return n.relocate(ctx, tx, f)
	})
	if err != nil {
		return nil, apperr.Translate(op, err)
	}
	return folder, nil
}

// ensureNotDescendant walks up from targetID and fails if it meets id.
func (n *Namespace) ensureNotDescendant(ctx context.Context, tx storage.Store, id, targetID, companyID string) error {
	seen := make(map[string]struct{})
	for cur := &targetID; cur != nil; {
		if *cur == id {
			return apperr.Validation("a folder cannot be moved into itself or its descendants")
		}
		if _, ok := seen[*cur]; ok {
			return nil
		}
		seen[*cur] = struct{}{}

		f, err := tx.Folders().Get(ctx, *cur, companyID)
		if err != nil {
			return notFoundAs(err, "parent folder not found")
		}
		cur = f.ParentID
	}
	return nil
}

// relocate stores f under its already computed path and propagates the
// change to its media and subtree.
func (n *Namespace) relocate(ctx context.Context, tx storage.Store, f *models.Folder) error {
	if err := ensurePathFree(ctx, tx, f.CompanyID, f.Path, f.ID); err != nil {
		return err
	}
	if err := tx.Folders().Update(ctx, f); err != nil {
		return err
	}
	if _, err := tx.Media().UpdatePathByFolder(ctx, f.ID, f.Path); err != nil {
		return err
	}
	return rewriteDescendants(ctx, tx, f)
}

// rewriteDescendants recomputes every path below root top-down, each child
// from its parent's freshly written path.
func rewriteDescendants(ctx context.Context, tx storage.Store, root *models.Folder) error {
	queue := []models.Folder{*root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		children, err := tx.Folders().ListChildren(ctx, parent.ID)
		if err != nil {
			return err
		}
		for i := range children {
			child := &children[i]
			child.Path = models.ChildPath(parent.Path, child.Name)
			if err := tx.Folders().Update(ctx, child); err != nil {
				return err
			}
			if _, err := tx.Media().UpdatePathByFolder(ctx, child.ID, child.Path); err != nil {
				return err
			}
			queue = append(queue, *child)
		}
	}
	return nil
}

// descendants lists the folders below id breadth first, so deeper folders
// always come after their ancestors. It follows parent links, never paths.
func descendants(ctx context.Context, tx storage.Store, id string) ([]models.Folder, error) {
	var (
		result []models.Folder
		queue  = []string{id}
		seen   = map[string]struct{}{id: {}}
	)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		children, err := tx.Folders().ListChildren(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			result = append(result, c)
			queue = append(queue, c.ID)
		}
	}
	return result, nil
}

func (n *Namespace) ListDescendants(ctx context.Context, id, companyID string) ([]models.Folder, error) {
	if _, err := n.store.Folders().Get(ctx, id, companyID); err != nil {
		return nil, apperr.Translate("list descendants", notFoundAs(err, "folder not found"))
	}

	result, err := descendants(ctx, n.store, id)
	if err != nil {
		return nil, apperr.Translate("list descendants", err)
	}
	return result, nil
}

// DeleteFolder removes a folder. Without recursive it must be empty; with
// it the whole subtree and its media go, deepest folders first. Binary
// objects are removed after the records are committed.
func (n *Namespace) DeleteFolder(ctx context.Context, id, companyID string, recursive bool) error {
	unlock := n.locks.Lock(companyID)
	defer unlock()

	var removed []models.Media
	err := n.store.WithinTx(ctx, func(tx storage.Store) error {
		f, err := tx.Folders().Get(ctx, id, companyID)
		if err != nil {
			return notFoundAs(err, "folder not found")
		}

		below, err := descendants(ctx, tx, f.ID)
		if err != nil {
			return err
		}

		if !recursive {
			filed, err := tx.Media().CountByFolder(ctx, f.ID)
			if err != nil {
				return err
			}
			if len(below) > 0 || filed > 0 {
				return apperr.Conflict("folder is not empty")
			}
		}

		ids := make([]string, 0, len(below)+1)
		ids = append(ids, f.ID)
		for _, d := range below {
			ids = append(ids, d.ID)
		}

		media, err := tx.Media().ListByFolders(ctx, ids)
		if err != nil {
			return err
		}

		for _, m := range media {
			if err := tx.Media().Delete(ctx, m.ID); err != nil {
				return err
			}
		}
		for i := len(below) - 1; i >= 0; i-- {
			if err := tx.Folders().Delete(ctx, below[i].ID); err != nil {
				return err
			}
		}
		if err := tx.Folders().Delete(ctx, f.ID); err != nil {
			return err
		}

		removed = media
		return nil
	})
	if err != nil {
		return apperr.Translate("delete folder", err)
	}

	for _, m := range removed {
		removeBlobs(ctx, n.blobs, n.logger, m)
	}

	n.logger.Info("folder deleted",
		zap.String("folderId", id),
		zap.Bool("recursive", recursive),
		zap.Int("media", len(removed)),
	)
	return nil
}

// BuildTree assembles the folders of a company, and optionally their media,
// into a forest. With rootID the forest holds the root's contents.
func (n *Namespace) BuildTree(ctx context.Context, companyID string, rootID *string, includeFiles bool) ([]*models.TreeNode, error) {
	rootID = models.NullIfEmpty(rootID)

	folders, err := n.store.Folders().List(ctx, models.FolderFilter{CompanyID: companyID})
	if err != nil {
		return nil, apperr.Translate("build tree", err)
	}

	key := ""
	if rootID != nil {
		key = *rootID
		if !containsFolder(folders, key) {
			return nil, apperr.NotFound("folder not found")
		}
	}

	childFolders := make(map[string][]models.Folder)
	for _, f := range folders {
		parent := ""
		if f.ParentID != nil {
			parent = *f.ParentID
		}
		childFolders[parent] = append(childFolders[parent], f)
	}

	childMedia := make(map[string][]models.Media)
	if includeFiles {
		media, err := n.store.Media().ListByCompany(ctx, companyID)
		if err != nil {
			return nil, apperr.Translate("build tree", err)
		}
		for _, m := range media {
			folder := ""
			if m.FolderID != nil {
				folder = *m.FolderID
			}
			childMedia[folder] = append(childMedia[folder], m)
		}
	}

	visited := make(map[string]struct{})
	var build func(parent string) []*models.TreeNode
	build = func(parent string) []*models.TreeNode {
		nodes := make([]*models.TreeNode, 0)
		for _, f := range childFolders[parent] {
			if _, ok := visited[f.ID]; ok {
				continue
			}
			visited[f.ID] = struct{}{}

			nodes = append(nodes, &models.TreeNode{
				Type:     models.NodeFolder,
				Folder:   &f,
				Children: build(f.ID),
			})
		}
		for _, m := range childMedia[parent] {
			nodes = append(nodes, &models.TreeNode{Type: models.NodeFile, Media: &m})
		}
		return nodes
	}

	return build(key), nil
}

func containsFolder(folders []models.Folder, id string) bool {
	for _, f := range folders {
		if f.ID == id {
			return true
		}
	}
	return false
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// removeBlobs deletes the object and thumbnail of m. Failures leave orphans
// behind and are only logged.
func removeBlobs(ctx context.Context, blobs BlobStore, logger *zap.Logger, m models.Media) {
	for _, url := range []string{m.URL, m.ThumbnailURL} {
		if url == "" {
			continue
		}
		if err := blobs.Delete(ctx, url); err != nil {
			logger.Error("cannot delete binary object",
				zap.String("mediaId", m.ID),
				zap.String("url", url),
				zap.Error(err),
			)
		}
	}
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
