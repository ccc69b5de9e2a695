package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/atinyakov/linkcore/internal/models"
)

const shortLinkColumns = "l.id, l.company_id, l.original_url, l.short_code, l.title, l.description, l.tags, l.status, " +
	"l.expires_at, l.custom_domain, l.category_id, l.created_at, l.updated_at, " +
	"(SELECT COUNT(*) FROM shortlink_analytics a WHERE a.link_id = l.id) AS clicks"

// shortLinkSort whitelists the sortable columns.
var shortLinkSort = map[string]string{
	"createdAt":   "l.created_at",
	"updatedAt":   "l.updated_at",
	"title":       "l.title",
	"shortCode":   "l.short_code",
	"originalUrl": "l.original_url",
	"status":      "l.status",
	"clicks":      "clicks",
}

type shortLinkRepo struct{ *Repository }

func scanShortLink(s scanner) (*models.ShortLink, error) {
	var (
		l          models.ShortLink
		tags       []byte
		expiresAt  sql.NullTime
		categoryID sql.NullString
	)
	err := s.Scan(
		&l.ID, &l.CompanyID, &l.OriginalURL, &l.ShortCode, &l.Title, &l.Description, &tags, &l.Status,
		&expiresAt, &l.CustomDomain, &categoryID, &l.CreatedAt, &l.UpdatedAt, &l.Clicks,
	)
	if err != nil {
		return nil, mapError(err)
	}

	if l.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	l.ExpiresAt = timePtr(expiresAt)
	l.CategoryID = stringPtr(categoryID)
	return &l, nil
}

func (r *shortLinkRepo) Create(ctx context.Context, l *models.ShortLink) error {
	tags, err := encodeTags(l.Tags)
	if err != nil {
		return err
	}

	row := r.q.QueryRowContext(ctx,
		`INSERT INTO short_links (company_id, original_url, short_code, title, description, tags, status,
			expires_at, custom_domain, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at;`,
		l.CompanyID, l.OriginalURL, l.ShortCode, l.Title, l.Description, tags, l.Status,
		nullableTime(l.ExpiresAt), l.CustomDomain, nullable(l.CategoryID),
	)
	return mapError(row.Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt))
}

func (r *shortLinkRepo) Get(ctx context.Context, id, companyID string) (*models.ShortLink, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+shortLinkColumns+" FROM short_links l WHERE l.id = $1 AND l.company_id = $2;",
		id, companyID,
	)
	return scanShortLink(row)
}

func (r *shortLinkRepo) FindByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+shortLinkColumns+" FROM short_links l WHERE l.short_code = $1;",
		code,
	)
	return scanShortLink(row)
}

func (r *shortLinkRepo) Update(ctx context.Context, l *models.ShortLink) error {
	tags, err := encodeTags(l.Tags)
	if err != nil {
		return err
	}

	row := r.q.QueryRowContext(ctx,
		`UPDATE short_links SET original_url = $1, short_code = $2, title = $3, description = $4, tags = $5,
			status = $6, expires_at = $7, custom_domain = $8, category_id = $9, updated_at = now()
		WHERE id = $10 RETURNING updated_at;`,
		l.OriginalURL, l.ShortCode, l.Title, l.Description, tags,
		l.Status, nullableTime(l.ExpiresAt), l.CustomDomain, nullable(l.CategoryID), l.ID,
	)
	return mapError(row.Scan(&l.UpdatedAt))
}

func (r *shortLinkRepo) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "DELETE FROM short_links WHERE id = $1;", id)
}

func (r *shortLinkRepo) List(ctx context.Context, filter models.LinkFilter) ([]models.ShortLink, int, error) {
	page, limit := models.NormalizePage(filter.Page, filter.Limit, 10)

	w := &where{}
	w.and("l.company_id = " + w.arg(filter.CompanyID))
	if filter.Status != "" {
		w.and("l.status = " + w.arg(filter.Status))
	}
	if filter.CategoryID != "" {
		w.and("l.category_id = " + w.arg(filter.CategoryID))
	}
	if filter.Search != "" {
		p := w.arg(likePattern(filter.Search))
		w.and("(l.title ILIKE " + p + " OR l.description ILIKE " + p +
			" OR l.original_url ILIKE " + p + " OR l.short_code ILIKE " + p + ")")
	}

	var total int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM short_links l"+w.String()+";", w.args...).Scan(&total)
	if err != nil {
		return nil, 0, mapError(err)
	}

	query := "SELECT " + shortLinkColumns + " FROM short_links l" + w.String() +
		orderBy(shortLinkSort, filter.SortBy, filter.SortOrder, "l.created_at") + ", l.id" +
		w.paginate(page, limit) + ";"

	rows, err := r.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	links := make([]models.ShortLink, 0)
	for rows.Next() {
		l, err := scanShortLink(rows)
		if err != nil {
			return nil, 0, err
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (r *shortLinkRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM short_links WHERE company_id = $1;", companyID).Scan(&n)
	return n, mapError(err)
}

// orderBy renders an ORDER BY clause from whitelisted columns. Unknown keys
// fall back to def, and anything but "asc" sorts descending.
func orderBy(columns map[string]string, sortBy, sortOrder, def string) string {
	col, ok := columns[sortBy]
	if !ok {
		col = def
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, models.SortAsc) {
		dir = "ASC"
	}
	return " ORDER BY " + col + " " + dir
}
