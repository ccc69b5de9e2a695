package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/linkcore/internal/models"
)

const folderColumns = "id, company_id, name, path, parent_id, created_at, updated_at"

type folderRepo struct{ *Repository }

func scanFolder(s scanner) (*models.Folder, error) {
	var (
		f        models.Folder
		parentID sql.NullString
	)
	if err := s.Scan(&f.ID, &f.CompanyID, &f.Name, &f.Path, &parentID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	f.ParentID = stringPtr(parentID)
	return &f, nil
}

func (r *folderRepo) queryFolders(ctx context.Context, query string, args ...any) ([]models.Folder, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	folders := make([]models.Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

func (r *folderRepo) Create(ctx context.Context, f *models.Folder) error {
	row := r.q.QueryRowContext(ctx,
		"INSERT INTO folders (company_id, name, path, parent_id) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at;",
		f.CompanyID, f.Name, f.Path, nullable(f.ParentID),
	)
	return mapError(row.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt))
}

func (r *folderRepo) Get(ctx context.Context, id, companyID string) (*models.Folder, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE id = $1 AND company_id = $2;",
		id, companyID,
	)
	return scanFolder(row)
}

func (r *folderRepo) FindByPath(ctx context.Context, companyID, path string) (*models.Folder, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE company_id = $1 AND path = $2;",
		companyID, path,
	)
	return scanFolder(row)
}

func (r *folderRepo) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	return r.queryFolders(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE parent_id = $1 ORDER BY name, id;",
		parentID,
	)
}

func (r *folderRepo) List(ctx context.Context, filter models.FolderFilter) ([]models.Folder, error) {
	w := &where{}
	w.and("company_id = " + w.arg(filter.CompanyID))
	switch {
	case filter.RootOnly:
		w.and("parent_id IS NULL")
	case filter.ParentID != nil:
		w.and("parent_id = " + w.arg(*filter.ParentID))
	}
	if filter.Search != "" {
		w.and("name ILIKE " + w.arg(likePattern(filter.Search)))
	}

	return r.queryFolders(ctx, "SELECT "+folderColumns+" FROM folders"+w.String()+" ORDER BY name, id;", w.args...)
}

func (r *folderRepo) Update(ctx context.Context, f *models.Folder) error {
	row := r.q.QueryRowContext(ctx,
		"UPDATE folders SET name = $1, path = $2, parent_id = $3, updated_at = now() WHERE id = $4 RETURNING updated_at;",
		f.Name, f.Path, nullable(f.ParentID), f.ID,
	)
	return mapError(row.Scan(&f.UpdatedAt))
}

func (r *folderRepo) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "DELETE FROM folders WHERE id = $1;", id)
}
