package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

func TestMemoryStorage_Folders(t *testing.T) {
	ctx := context.Background()
	mem, _ := storage.CreateMemoryStorage()

	root := &models.Folder{CompanyID: "c1", Name: "docs", Path: "/docs"}
	require.NoError(t, mem.Folders().Create(ctx, root))
	assert.NotEmpty(t, root.ID)

	// Same path in the same company conflicts
	err := mem.Folders().Create(ctx, &models.Folder{CompanyID: "c1", Name: "docs", Path: "/docs"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Same path in another company is fine
	assert.NoError(t, mem.Folders().Create(ctx, &models.Folder{CompanyID: "c2", Name: "docs", Path: "/docs"}))

	child := &models.Folder{CompanyID: "c1", Name: "a", Path: "/docs/a", ParentID: &root.ID}
	require.NoError(t, mem.Folders().Create(ctx, child))

	found, err := mem.Folders().FindByPath(ctx, "c1", "/docs/a")
	require.NoError(t, err)
	assert.Equal(t, child.ID, found.ID)

	_, err = mem.Folders().Get(ctx, child.ID, "c2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	children, err := mem.Folders().ListChildren(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, children, 1)

	roots, err := mem.Folders().List(ctx, models.FolderFilter{CompanyID: "c1", RootOnly: true})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "docs", roots[0].Name)

	searched, err := mem.Folders().List(ctx, models.FolderFilter{CompanyID: "c1", Search: "DO"})
	require.NoError(t, err)
	assert.Len(t, searched, 1)

	require.NoError(t, mem.Folders().Delete(ctx, child.ID))
	assert.ErrorIs(t, mem.Folders().Delete(ctx, child.ID), storage.ErrNotFound)
}

func TestMemoryStorage_MediaPathRewrite(t *testing.T) {
	ctx := context.Background()
	mem, _ := storage.CreateMemoryStorage()

	folderID := "f1"
	for i := 0; i < 3; i++ {
		require.NoError(t, mem.Media().Create(ctx, &models.Media{
			CompanyID: "c1",
			FolderID:  &folderID,
			Path:      models.StringPtr("/old"),
			Title:     "m",
		}))
	}
	require.NoError(t, mem.Media().Create(ctx, &models.Media{CompanyID: "c1", Title: "loose"}))

	n, err := mem.Media().UpdatePathByFolder(ctx, folderID, "/new")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	items, err := mem.Media().ListByFolders(ctx, []string{folderID})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, m := range items {
		assert.Equal(t, "/new", *m.Path)
	}

	count, err := mem.Media().CountByFolder(ctx, folderID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	page, total, err := mem.Media().List(ctx, models.MediaFilter{CompanyID: "c1", RootOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "loose", page[0].Title)

	page, total, err = mem.Media().List(ctx, models.MediaFilter{CompanyID: "c1", Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, page, 1)
}

func TestMemoryStorage_ShortLinks(t *testing.T) {
	ctx := context.Background()
	mem, _ := storage.CreateMemoryStorage()

	link := &models.ShortLink{CompanyID: "c1", OriginalURL: "https://example.com", ShortCode: "abc123", Status: models.StatusActive}
	require.NoError(t, mem.ShortLinks().Create(ctx, link))

	// Codes are unique across companies
	err := mem.ShortLinks().Create(ctx, &models.ShortLink{CompanyID: "c2", ShortCode: "abc123"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	require.NoError(t, mem.Events().Append(ctx, &models.AnalyticsEvent{Kind: models.KindShortLink, LinkID: link.ID, Action: "click"}))
	require.NoError(t, mem.Events().Append(ctx, &models.AnalyticsEvent{Kind: models.KindShortLink, LinkID: link.ID, Action: "click"}))

	found, err := mem.ShortLinks().FindByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", found.OriginalURL)
	assert.Equal(t, 2, found.Clicks)

	_, err = mem.ShortLinks().FindByCode(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Updating a link to its own code is not a conflict
	found.Title = "renamed"
	require.NoError(t, mem.ShortLinks().Update(ctx, found))

	clicks, err := mem.Events().CountByCompany(ctx, models.KindShortLink, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, clicks)

	clicks, err = mem.Events().CountByCompany(ctx, models.KindShortLink, "c2")
	require.NoError(t, err)
	assert.Equal(t, 0, clicks)
}

func TestMemoryStorage_ShortLinkListing(t *testing.T) {
	ctx := context.Background()
	mem, _ := storage.CreateMemoryStorage()

	for _, code := range []string{"bbb", "aaa", "ccc"} {
		require.NoError(t, mem.ShortLinks().Create(ctx, &models.ShortLink{
			CompanyID:   "c1",
			ShortCode:   code,
			OriginalURL: "https://" + code + ".com",
			Status:      models.StatusActive,
		}))
	}

	items, total, err := mem.ShortLinks().List(ctx, models.LinkFilter{
		CompanyID: "c1",
		SortBy:    "shortCode",
		SortOrder: models.SortAsc,
		Limit:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "aaa", items[0].ShortCode)
	assert.Equal(t, "bbb", items[1].ShortCode)

	items, total, err = mem.ShortLinks().List(ctx, models.LinkFilter{CompanyID: "c1", Search: "CCC"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "ccc", items[0].ShortCode)
}

func TestMemoryStorage_DigitalLinks(t *testing.T) {
	ctx := context.Background()
	mem, _ := storage.CreateMemoryStorage()

	url := "01/09506000134352"
	link := &models.DigitalLink{CompanyID: "c1", GS1Key: models.StringPtr("09506000134352"), GS1URL: &url}
	require.NoError(t, mem.DigitalLinks().Create(ctx, link))

	err := mem.DigitalLinks().Create(ctx, &models.DigitalLink{CompanyID: "c1", GS1URL: &url})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Another company may reuse the URL
	assert.NoError(t, mem.DigitalLinks().Create(ctx, &models.DigitalLink{CompanyID: "c2", GS1URL: &url}))

	_, err = mem.DigitalLinks().FindByURL(ctx, "c1", url, link.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	found, err := mem.DigitalLinks().FindByKey(ctx, "09506000134352")
	require.NoError(t, err)
	assert.Equal(t, link.ID, found.ID)

	byPath, err := mem.DigitalLinks().FindByPath(ctx, url)
	require.NoError(t, err)
	assert.NotEmpty(t, byPath.ID)
}

func TestMemoryStorage_Events(t *testing.T) {
	ctx := context.Background()
	mem, _ := storage.CreateMemoryStorage()

	day1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	events := []models.AnalyticsEvent{
		{Kind: models.KindShortLink, LinkID: "l1", Timestamp: day1, Classification: models.Classification{Browser: "Chrome"}},
		{Kind: models.KindShortLink, LinkID: "l1", Timestamp: day2, Classification: models.Classification{Browser: "Chrome"}},
		{Kind: models.KindShortLink, LinkID: "l1", Timestamp: day2},
		{Kind: models.KindDigitalLink, LinkID: "l1", Timestamp: day2, Details: map[string]any{"browser": "Safari"}},
	}
	for i := range events {
		require.NoError(t, mem.Events().Append(ctx, &events[i]))
	}

	q := models.EventQuery{Kind: models.KindShortLink, LinkID: "l1"}
	n, err := mem.Events().Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buckets, err := mem.Events().GroupBy(ctx, q, models.DimBrowser)
	require.NoError(t, err)
	assert.Equal(t, []models.Bucket{{Value: "", Count: 1}, {Value: "Chrome", Count: 2}}, buckets)

	from := day2
	q.Range = models.DateRange{From: &from}
	n, err = mem.Events().Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	listed, err := mem.Events().List(ctx, q)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	dl, err := mem.Events().GroupBy(ctx, models.EventQuery{Kind: models.KindDigitalLink, LinkID: "l1"}, models.DimBrowser)
	require.NoError(t, err)
	assert.Equal(t, []models.Bucket{{Value: "Safari", Count: 1}}, dl)

	require.NoError(t, mem.Events().DeleteByLink(ctx, models.KindShortLink, "l1"))
	n, err = mem.Events().Count(ctx, models.EventQuery{Kind: models.KindShortLink, LinkID: "l1"})
	require.NoError(t, err)
	assert.Zero(t, n)

	// Digital-link events of the same id survive
	n, err = mem.Events().Count(ctx, models.EventQuery{Kind: models.KindDigitalLink, LinkID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStorage_Activities(t *testing.T) {
	ctx := context.Background()
	mem, _ := storage.CreateMemoryStorage()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var entries []models.LinkActivity
	for i := 0; i < 7; i++ {
		entries = append(entries, models.LinkActivity{
			CompanyID: "c1",
			Action:    models.ActionCreated,
			ItemID:    "l",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, mem.Activities().Append(ctx, entries))

	recent, err := mem.Activities().Recent(ctx, "c1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, base.Add(6*time.Minute), recent[0].Timestamp)
}

func TestMemoryStorage_WithinTx(t *testing.T) {
	ctx := context.Background()
	mem, _ := storage.CreateMemoryStorage()

	boom := errors.New("boom")
	err := mem.WithinTx(ctx, func(tx storage.Store) error {
		if err := tx.Folders().Create(ctx, &models.Folder{CompanyID: "c1", Name: "x", Path: "/x"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = mem.Folders().FindByPath(ctx, "c1", "/x")
	assert.ErrorIs(t, err, storage.ErrNotFound, "rolled back write must not be visible")

	err = mem.WithinTx(ctx, func(tx storage.Store) error {
		return tx.Folders().Create(ctx, &models.Folder{CompanyID: "c1", Name: "y", Path: "/y"})
	})
	require.NoError(t, err)

	_, err = mem.Folders().FindByPath(ctx, "c1", "/y")
	assert.NoError(t, err)
}

func TestMemoryStorage_PingContext(t *testing.T) {
	mem, _ := storage.CreateMemoryStorage()

	assert.NoError(t, mem.PingContext(context.Background()))
}
