package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/linkcore/internal/models"
)

const digitalLinkColumns = "l.id, l.company_id, l.gs1_key, l.gs1_key_type, l.gs1_url, l.link_type, l.redirect_type, " +
	"l.custom_url, l.product_id, l.title, l.description, l.tags, l.status, l.expires_at, l.category_id, " +
	"l.created_at, l.updated_at, " +
	"(SELECT COUNT(*) FROM digitallink_analytics a WHERE a.link_id = l.id) AS clicks"

var digitalLinkSort = map[string]string{
	"createdAt": "l.created_at",
	"updatedAt": "l.updated_at",
	"title":     "l.title",
	"gs1Key":    "l.gs1_key",
	"gs1Url":    "l.gs1_url",
	"status":    "l.status",
	"clicks":    "clicks",
}

type digitalLinkRepo struct{ *Repository }

func scanDigitalLink(s scanner) (*models.DigitalLink, error) {
	var (
		l                                  models.DigitalLink
		key, keyType, url, custom, product sql.NullString
		categoryID                         sql.NullString
		tags                               []byte
		expiresAt                          sql.NullTime
	)
	err := s.Scan(
		&l.ID, &l.CompanyID, &key, &keyType, &url, &l.LinkType, &l.RedirectType,
		&custom, &product, &l.Title, &l.Description, &tags, &l.Status, &expiresAt, &categoryID,
		&l.CreatedAt, &l.UpdatedAt, &l.Clicks,
	)
	if err != nil {
		return nil, mapError(err)
	}

	if l.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	l.GS1Key = stringPtr(key)
	l.GS1KeyType = stringPtr(keyType)
	l.GS1URL = stringPtr(url)
	l.CustomURL = stringPtr(custom)
	l.ProductID = stringPtr(product)
	l.ExpiresAt = timePtr(expiresAt)
	l.CategoryID = stringPtr(categoryID)
	return &l, nil
}

func (r *digitalLinkRepo) findOne(ctx context.Context, cond string, args ...any) (*models.DigitalLink, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+digitalLinkColumns+" FROM digital_links l WHERE "+cond+" ORDER BY l.created_at, l.id LIMIT 1;",
		args...,
	)
	return scanDigitalLink(row)
}

func (r *digitalLinkRepo) Create(ctx context.Context, l *models.DigitalLink) error {
	tags, err := encodeTags(l.Tags)
	if err != nil {
		return err
	}

	row := r.q.QueryRowContext(ctx,
		`INSERT INTO digital_links (company_id, gs1_key, gs1_key_type, gs1_url, link_type, redirect_type,
			custom_url, product_id, title, description, tags, status, expires_at, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at;`,
		l.CompanyID, nullable(l.GS1Key), nullable(l.GS1KeyType), nullable(l.GS1URL), l.LinkType, l.RedirectType,
		nullable(l.CustomURL), nullable(l.ProductID), l.Title, l.Description, tags, l.Status,
		nullableTime(l.ExpiresAt), nullable(l.CategoryID),
	)
	return mapError(row.Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt))
}

func (r *digitalLinkRepo) Get(ctx context.Context, id, companyID string) (*models.DigitalLink, error) {
	return r.findOne(ctx, "l.id = $1 AND l.company_id = $2", id, companyID)
}

func (r *digitalLinkRepo) FindByURL(ctx context.Context, companyID, gs1URL, excludeID string) (*models.DigitalLink, error) {
	if excludeID == "" {
		return r.findOne(ctx, "l.company_id = $1 AND l.gs1_url = $2", companyID, gs1URL)
	}
	return r.findOne(ctx, "l.company_id = $1 AND l.gs1_url = $2 AND l.id <> $3", companyID, gs1URL, excludeID)
}

func (r *digitalLinkRepo) FindByPath(ctx context.Context, gs1URL string) (*models.DigitalLink, error) {
	return r.findOne(ctx, "l.gs1_url = $1", gs1URL)
}

func (r *digitalLinkRepo) FindByKey(ctx context.Context, key string) (*models.DigitalLink, error) {
	return r.findOne(ctx, "l.gs1_key = $1", key)
}

func (r *digitalLinkRepo) Update(ctx context.Context, l *models.DigitalLink) error {
	tags, err := encodeTags(l.Tags)
	if err != nil {
		return err
	}

	row := r.q.QueryRowContext(ctx,
		`UPDATE digital_links SET gs1_key = $1, gs1_key_type = $2, gs1_url = $3, link_type = $4, redirect_type = $5,
			custom_url = $6, product_id = $7, title = $8, description = $9, tags = $10, status = $11,
			expires_at = $12, category_id = $13, updated_at = now()
		WHERE id = $14 RETURNING updated_at;`,
		nullable(l.GS1Key), nullable(l.GS1KeyType), nullable(l.GS1URL), l.LinkType, l.RedirectType,
		nullable(l.CustomURL), nullable(l.ProductID), l.Title, l.Description, tags, l.Status,
		nullableTime(l.ExpiresAt), nullable(l.CategoryID), l.ID,
	)
	return mapError(row.Scan(&l.UpdatedAt))
}

func (r *digitalLinkRepo) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "DELETE FROM digital_links WHERE id = $1;", id)
}

func (r *digitalLinkRepo) List(ctx context.Context, filter models.LinkFilter) ([]models.DigitalLink, int, error) {
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
		w.and("(l.title ILIKE " + p + " OR l.description ILIKE " + p + " OR l.gs1_key ILIKE " + p +
			" OR l.gs1_key_type ILIKE " + p + " OR l.gs1_url ILIKE " + p + " OR l.custom_url ILIKE " + p + ")")
	}

	var total int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM digital_links l"+w.String()+";", w.args...).Scan(&total)
	if err != nil {
		return nil, 0, mapError(err)
	}

	query := "SELECT " + digitalLinkColumns + " FROM digital_links l" + w.String() +
		orderBy(digitalLinkSort, filter.SortBy, filter.SortOrder, "l.created_at") + ", l.id" +
		w.paginate(page, limit) + ";"

	rows, err := r.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	links := make([]models.DigitalLink, 0)
	for rows.Next() {
		l, err := scanDigitalLink(rows)
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

func (r *digitalLinkRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM digital_links WHERE company_id = $1;", companyID).Scan(&n)
	return n, mapError(err)
}
