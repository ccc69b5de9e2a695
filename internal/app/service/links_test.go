package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/linkcore/internal/app/service"
	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/mocks"
	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

type linksFixture struct {
	store *storage.MemoryStorage
	links *service.Links
	logs  *observer.ObservedLogs
}

func newLinks(t *testing.T, recorder service.ActivityRecorder, store *storage.MemoryStorage) *linksFixture {
	t.Helper()

	if store == nil {
		store = newStore(t)
	}
	if recorder == nil {
		recorder = service.NewDirectRecorder(store)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	links := service.NewLinks(store,
		service.NewCodeResolver(store, 6),
		service.NewDigitalLinkFormatter(store),
		recorder,
		zap.New(core),
	)
	return &linksFixture{store: store, links: links, logs: logs}
}

func (f *linksFixture) activity(t *testing.T, companyID string) []models.LinkActivity {
	t.Helper()

	items, err := f.links.RecentActivity(context.Background(), companyID, 100)
	require.NoError(t, err)
	return items
}

func TestLinks_CreateShortLink(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	l, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{OriginalURL: "https://example.com"}, "c1", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Len(t, l.ShortCode, 6)
	assert.Equal(t, models.StatusActive, l.Status)
	assert.Equal(t, []string{}, l.Tags)

	entries := f.activity(t, "c1")
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionCreated, entries[0].Action)
	assert.Equal(t, models.KindShortLink, entries[0].Kind)
	assert.Equal(t, "u1", entries[0].ActorID)
	assert.Equal(t, l.ID, entries[0].ItemID)
	assert.Equal(t, l.ShortCode, entries[0].ItemName)
	assert.Equal(t, l.ShortCode, entries[0].Details["shortCode"])

	t.Run("requires original url", func(t *testing.T) {
		_, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{}, "c1", "u1")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("supplied code", func(t *testing.T) {
		custom, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{
			OriginalURL: "https://example.com/a",
			ShortCode:   "promo",
			Tags:        []string{"x"},
			CategoryID:  models.StringPtr(""),
		}, "c1", "u1")
		require.NoError(t, err)
		assert.Equal(t, "promo", custom.ShortCode)
		assert.Nil(t, custom.CategoryID)
	})

	t.Run("supplied code taken by another company", func(t *testing.T) {
		_, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{
			OriginalURL: "https://example.com/b",
			ShortCode:   "promo",
		}, "c2", "u2")
		require.ErrorIs(t, err, apperr.ErrConflict)
		assert.EqualError(t, err, "short code already exists")
	})
}

func TestLinks_CreateShortLinkSurvivesActivityFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockActivityRecorder(ctrl)
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("queue full"))

	f := newLinks(t, recorder, nil)

	l, err := f.links.CreateShortLink(context.Background(), models.ShortLinkInput{OriginalURL: "https://example.com"}, "c1", "u1")
	require.NoError(t, err)

	stored, err := f.links.GetShortLink(context.Background(), l.ID, "c1")
	require.NoError(t, err)
	assert.Equal(t, l.ShortCode, stored.ShortCode)

	entries := f.logs.FilterMessage("cannot record link activity").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, l.ID, entries[0].ContextMap()["linkId"])
	assert.Equal(t, "queue full", entries[0].ContextMap()["error"])
}

func TestLinks_UpdateShortLink(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	a, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{OriginalURL: "https://a.example", ShortCode: "aaa"}, "c1", "u1")
	require.NoError(t, err)
	_, err = f.links.CreateShortLink(ctx, models.ShortLinkInput{OriginalURL: "https://b.example", ShortCode: "bbb"}, "c1", "u1")
	require.NoError(t, err)

	t.Run("code collision", func(t *testing.T) {
		_, err := f.links.UpdateShortLink(ctx, a.ID, "c1", models.ShortLinkPatch{ShortCode: models.StringPtr("bbb")}, "u1")
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("own code", func(t *testing.T) {
		_, err := f.links.UpdateShortLink(ctx, a.ID, "c1", models.ShortLinkPatch{ShortCode: models.StringPtr("aaa")}, "u1")
		assert.NoError(t, err)
	})

	t.Run("fields", func(t *testing.T) {
		expiry := time.Now().Add(24 * time.Hour).UTC()
		updated, err := f.links.UpdateShortLink(ctx, a.ID, "c1", models.ShortLinkPatch{
			ShortCode:  models.StringPtr("ccc"),
			Title:      models.StringPtr("Spring sale"),
			Status:     models.StringPtr(models.StatusInactive),
			ExpiresAt:  &expiry,
			CategoryID: models.StringPtr(""),
		}, "u1")
		require.NoError(t, err)
		assert.Equal(t, "ccc", updated.ShortCode)
		assert.Equal(t, "Spring sale", updated.Title)
		assert.Equal(t, models.StatusInactive, updated.Status)
		require.NotNil(t, updated.ExpiresAt)
		assert.True(t, expiry.Equal(*updated.ExpiresAt))
		assert.Nil(t, updated.CategoryID)

		cleared, err := f.links.UpdateShortLink(ctx, a.ID, "c1", models.ShortLinkPatch{ClearExpiry: true}, "u1")
		require.NoError(t, err)
		assert.Nil(t, cleared.ExpiresAt)
	})

	t.Run("empty code", func(t *testing.T) {
		_, err := f.links.UpdateShortLink(ctx, a.ID, "c1", models.ShortLinkPatch{ShortCode: models.StringPtr(" ")}, "u1")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("foreign company", func(t *testing.T) {
		_, err := f.links.UpdateShortLink(ctx, a.ID, "c2", models.ShortLinkPatch{}, "u1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	var updates int
	for _, e := range f.activity(t, "c1") {
		if e.Action == models.ActionUpdated {
			updates++
		}
	}
	assert.Equal(t, 3, updates)
}

func TestLinks_DeleteShortLink(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	l, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{OriginalURL: "https://example.com", Title: "Promo"}, "c1", "u1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.Events().Append(ctx, &models.AnalyticsEvent{Kind: models.KindShortLink, LinkID: l.ID, Action: models.EventClick}))
	}

	require.NoError(t, f.links.DeleteShortLink(ctx, l.ID, "c1", "u2"))

	_, err = f.links.GetShortLink(ctx, l.ID, "c1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	left, err := f.store.Events().Count(ctx, models.EventQuery{Kind: models.KindShortLink, LinkID: l.ID})
	require.NoError(t, err)
	assert.Zero(t, left)

	entries := f.activity(t, "c1")
	var deleted *models.LinkActivity
	for i := range entries {
		if entries[i].Action == models.ActionDeleted {
			deleted = &entries[i]
		}
	}
	require.NotNil(t, deleted)
	assert.Equal(t, "Promo", deleted.ItemName)
	assert.Equal(t, "u2", deleted.ActorID)
	assert.Equal(t, l.ShortCode, deleted.Details["shortCode"])

	err = f.links.DeleteShortLink(ctx, l.ID, "c1", "u2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLinks_ListShortLinks(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	for _, code := range []string{"one", "two", "three"} {
		_, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{OriginalURL: "https://example.com/" + code, ShortCode: code}, "c1", "u1")
		require.NoError(t, err)
	}
	_, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{OriginalURL: "https://example.com", ShortCode: "other"}, "c2", "u1")
	require.NoError(t, err)

	page, err := f.links.ListShortLinks(ctx, models.LinkFilter{CompanyID: "c1"})
	require.NoError(t, err)
	assert.Len(t, page.ShortLinks, 3)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 10, TotalCount: 3, TotalPages: 1}, page.Pagination)

	page, err = f.links.ListShortLinks(ctx, models.LinkFilter{CompanyID: "c1", Search: "TWO"})
	require.NoError(t, err)
	require.Len(t, page.ShortLinks, 1)
	assert.Equal(t, "two", page.ShortLinks[0].ShortCode)
}

func TestLinks_CreateDigitalLink(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	req := models.GS1Link{
		Key:          "00011122233344",
		KeyType:      "GTIN",
		RedirectType: models.RedirectStandard,
		ProductID:    "p1",
	}

	l, err := f.links.CreateDigitalLink(ctx, req, models.DigitalLinkMeta{}, "c1", "u1")
	require.NoError(t, err)
	require.NotNil(t, l.GS1URL)
	assert.Equal(t, "01/00011122233344", *l.GS1URL)
	assert.Equal(t, "p1", *l.ProductID)
	assert.Nil(t, l.CustomURL)
	assert.Equal(t, models.StatusActive, l.Status)

	_, err = f.links.CreateDigitalLink(ctx, req, models.DigitalLinkMeta{}, "c1", "u1")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	other, err := f.links.CreateDigitalLink(ctx, req, models.DigitalLinkMeta{}, "c2", "u1")
	require.NoError(t, err)
	assert.Equal(t, "01/00011122233344", *other.GS1URL)

	entries := f.activity(t, "c1")
	require.Len(t, entries, 1)
	assert.Equal(t, models.KindDigitalLink, entries[0].Kind)
	assert.Equal(t, "00011122233344", entries[0].ItemName)
}

func TestLinks_CreateDigitalLinkValidation(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.DigitalLinkRequest
	}{
		{name: "missing key", req: models.GS1Link{KeyType: "GTIN", RedirectType: models.RedirectCustom, CustomURL: "https://x"}},
		{name: "missing key type", req: models.GS1Link{Key: "1", RedirectType: models.RedirectCustom, CustomURL: "https://x"}},
		{name: "unknown key type", req: models.GS1Link{Key: "1", KeyType: "BOGUS", RedirectType: models.RedirectCustom, CustomURL: "https://x"}},
		{name: "missing redirect type", req: models.GS1Link{Key: "1", KeyType: "GTIN"}},
		{name: "custom without url", req: models.GS1Link{Key: "1", KeyType: "GTIN", RedirectType: models.RedirectCustom}},
		{name: "standard without product", req: models.GS1Link{Key: "1", KeyType: "GTIN", RedirectType: models.RedirectStandard}},
		{name: "unknown redirect type", req: models.GS1Link{Key: "1", KeyType: "GTIN", RedirectType: "other"}},
		{name: "unknown special kind", req: models.SpecialLink{Kind: "video", TargetURL: "https://x"}},
		{name: "special without target", req: models.SpecialLink{Kind: models.SpecialForm}},
		{name: "no request", req: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.links.CreateDigitalLink(ctx, tt.req, models.DigitalLinkMeta{}, "c1", "u1")
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestLinks_CreateSpecialDigitalLink(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	page, err := f.links.CreateDigitalLink(ctx, models.SpecialLink{Kind: models.SpecialPage, TargetURL: "/p/landing"},
		models.DigitalLinkMeta{Title: "Landing"}, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RedirectCustom, page.RedirectType)
	assert.Equal(t, "/p/landing", *page.CustomURL)
	assert.Equal(t, "page", page.LinkType)
	assert.Nil(t, page.GS1URL)

	keyed, err := f.links.CreateDigitalLink(ctx, models.SpecialLink{Kind: models.SpecialSurvey, TargetURL: "/s/1", Key: "42", KeyType: "GLN"},
		models.DigitalLinkMeta{}, "c1", "u1")
	require.NoError(t, err)
	require.NotNil(t, keyed.GS1URL)
	assert.Equal(t, "414/42", *keyed.GS1URL)
}

func TestLinks_UpdateDigitalLink(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	a, err := f.links.CreateDigitalLink(ctx, models.GS1Link{Key: "1", KeyType: "GTIN", RedirectType: models.RedirectCustom, CustomURL: "https://a"},
		models.DigitalLinkMeta{}, "c1", "u1")
	require.NoError(t, err)
	_, err = f.links.CreateDigitalLink(ctx, models.GS1Link{Key: "2", KeyType: "GTIN", RedirectType: models.RedirectCustom, CustomURL: "https://b"},
		models.DigitalLinkMeta{}, "c1", "u1")
	require.NoError(t, err)

	t.Run("duplicate url", func(t *testing.T) {
		_, err := f.links.UpdateDigitalLink(ctx, a.ID, "c1", models.DigitalLinkPatch{GS1Key: models.StringPtr("2")}, "u1")
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("unchanged key keeps url", func(t *testing.T) {
		l, err := f.links.UpdateDigitalLink(ctx, a.ID, "c1", models.DigitalLinkPatch{
			GS1Key:     models.StringPtr("1"),
			GS1KeyType: models.StringPtr("GTIN"),
			Title:      models.StringPtr("A"),
		}, "u1")
		require.NoError(t, err)
		assert.Equal(t, "01/1", *l.GS1URL)
		assert.Equal(t, "A", l.Title)
	})

	t.Run("new key type", func(t *testing.T) {
		l, err := f.links.UpdateDigitalLink(ctx, a.ID, "c1", models.DigitalLinkPatch{GS1KeyType: models.StringPtr("SSCC")}, "u1")
		require.NoError(t, err)
		assert.Equal(t, "00/1", *l.GS1URL)
	})

	t.Run("invalid key type", func(t *testing.T) {
		_, err := f.links.UpdateDigitalLink(ctx, a.ID, "c1", models.DigitalLinkPatch{GS1KeyType: models.StringPtr("BOGUS")}, "u1")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("standard needs product", func(t *testing.T) {
		_, err := f.links.UpdateDigitalLink(ctx, a.ID, "c1", models.DigitalLinkPatch{RedirectType: models.StringPtr(models.RedirectStandard)}, "u1")
		assert.ErrorIs(t, err, apperr.ErrValidation)

		l, err := f.links.UpdateDigitalLink(ctx, a.ID, "c1", models.DigitalLinkPatch{
			RedirectType: models.StringPtr(models.RedirectStandard),
			ProductID:    models.StringPtr("p9"),
		}, "u1")
		require.NoError(t, err)
		assert.Equal(t, "https://shop.example/products/p9", l.Target("https://shop.example/products"))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := f.links.UpdateDigitalLink(ctx, "nope", "c1", models.DigitalLinkPatch{}, "u1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestLinks_DeleteDigitalLink(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	l, err := f.links.CreateDigitalLink(ctx, models.GS1Link{Key: "1", KeyType: "GTIN", RedirectType: models.RedirectCustom, CustomURL: "https://a"},
		models.DigitalLinkMeta{}, "c1", "u1")
	require.NoError(t, err)
	require.NoError(t, f.store.Events().Append(ctx, &models.AnalyticsEvent{Kind: models.KindDigitalLink, LinkID: l.ID, Action: models.EventClick}))

	require.NoError(t, f.links.DeleteDigitalLink(ctx, l.ID, "c1", "u1"))

	_, err = f.links.GetDigitalLink(ctx, l.ID, "c1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	n, err := f.store.Events().Count(ctx, models.EventQuery{Kind: models.KindDigitalLink, LinkID: l.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	// the url is free again
	_, err = f.links.CreateDigitalLink(ctx, models.GS1Link{Key: "1", KeyType: "GTIN", RedirectType: models.RedirectCustom, CustomURL: "https://a"},
		models.DigitalLinkMeta{}, "c1", "u1")
	assert.NoError(t, err)
}

func TestLinks_RecentActivity(t *testing.T) {
	f := newLinks(t, nil, nil)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.links.CreateShortLink(ctx, models.ShortLinkInput{OriginalURL: "https://example.com"}, "c1", "u1")
		require.NoError(t, err)
	}

	items, err := f.links.RecentActivity(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, items, 5)

	items, err = f.links.RecentActivity(ctx, "c2", 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
