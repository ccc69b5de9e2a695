package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/atinyakov/linkcore/internal/models"
)

const mediaColumns = "id, company_id, folder_id, path, type, section, title, description, alt, width, height, " +
	"url, filename, original_name, size, mime_type, thumbnail_url, created_at, updated_at"

type mediaRepo struct{ *Repository }

func scanMedia(s scanner) (*models.Media, error) {
	var (
		m              models.Media
		folderID, path sql.NullString
		width, height  sql.NullInt64
	)
	err := s.Scan(
		&m.ID, &m.CompanyID, &folderID, &path, &m.Type, &m.Section, &m.Title, &m.Description, &m.Alt,
		&width, &height, &m.URL, &m.Filename, &m.OriginalName, &m.Size, &m.MimeType, &m.ThumbnailURL,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	m.FolderID = stringPtr(folderID)
	m.Path = stringPtr(path)
	m.Width = intPtr(width)
	m.Height = intPtr(height)
	return &m, nil
}

func (r *mediaRepo) queryMedia(ctx context.Context, query string, args ...any) ([]models.Media, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	items := make([]models.Media, 0)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func (r *mediaRepo) Create(ctx context.Context, m *models.Media) error {
	row := r.q.QueryRowContext(ctx,
		`INSERT INTO media (company_id, folder_id, path, type, section, title, description, alt, width, height,
			url, filename, original_name, size, mime_type, thumbnail_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at;`,
		m.CompanyID, nullable(m.FolderID), nullable(m.Path), m.Type, m.Section, m.Title, m.Description, m.Alt,
		nullableInt(m.Width), nullableInt(m.Height), m.URL, m.Filename, m.OriginalName, m.Size, m.MimeType, m.ThumbnailURL,
	)
	return mapError(row.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt))
}

func (r *mediaRepo) Get(ctx context.Context, id, companyID string) (*models.Media, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+mediaColumns+" FROM media WHERE id = $1 AND company_id = $2;",
		id, companyID,
	)
	return scanMedia(row)
}

func (r *mediaRepo) Update(ctx context.Context, m *models.Media) error {
	row := r.q.QueryRowContext(ctx,
		`UPDATE media SET folder_id = $1, path = $2, section = $3, title = $4, description = $5, alt = $6,
			width = $7, height = $8, updated_at = now()
		WHERE id = $9 RETURNING updated_at;`,
		nullable(m.FolderID), nullable(m.Path), m.Section, m.Title, m.Description, m.Alt,
		nullableInt(m.Width), nullableInt(m.Height), m.ID,
	)
	return mapError(row.Scan(&m.UpdatedAt))
}

func (r *mediaRepo) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "DELETE FROM media WHERE id = $1;", id)
}

func (r *mediaRepo) List(ctx context.Context, filter models.MediaFilter) ([]models.Media, int, error) {
	page, limit := models.NormalizePage(filter.Page, filter.Limit, 20)

	w := &where{}
	w.and("company_id = " + w.arg(filter.CompanyID))
	if filter.Type != "" {
		w.and("type = " + w.arg(string(filter.Type)))
	}
	if filter.Section != "" {
		w.and("section = " + w.arg(filter.Section))
	}
	switch {
	case filter.RootOnly:
		w.and("folder_id IS NULL")
	case filter.FolderID != nil:
		w.and("folder_id = " + w.arg(*filter.FolderID))
	}
	if filter.Search != "" {
		p := w.arg(likePattern(filter.Search))
		w.and("(title ILIKE " + p + " OR original_name ILIKE " + p + " OR description ILIKE " + p + ")")
	}

	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM media"+w.String()+";", w.args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := "SELECT " + mediaColumns + " FROM media" + w.String() +
		" ORDER BY created_at DESC, id" + w.paginate(page, limit) + ";"
	items, err := r.queryMedia(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *mediaRepo) ListByFolders(ctx context.Context, folderIDs []string) ([]models.Media, error) {
	if len(folderIDs) == 0 {
		return []models.Media{}, nil
	}
	w := &where{}
	placeholders := make([]string, len(folderIDs))
	for i, id := range folderIDs {
		placeholders[i] = w.arg(id)
	}
	w.and("folder_id IN (" + strings.Join(placeholders, ", ") + ")")

	return r.queryMedia(ctx, "SELECT "+mediaColumns+" FROM media"+w.String()+" ORDER BY id;", w.args...)
}

func (r *mediaRepo) ListByCompany(ctx context.Context, companyID string) ([]models.Media, error) {
	return r.queryMedia(ctx,
		"SELECT "+mediaColumns+" FROM media WHERE company_id = $1 ORDER BY title, id;",
		companyID,
	)
}

func (r *mediaRepo) UpdatePathByFolder(ctx context.Context, folderID, path string) (int, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE media SET path = $1, updated_at = now() WHERE folder_id = $2;",
		path, folderID,
	)
	if err != nil {
		return 0, mapError(err)
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (r *mediaRepo) CountByFolder(ctx context.Context, folderID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM media WHERE folder_id = $1;", folderID).Scan(&n)
	return n, mapError(err)
}
