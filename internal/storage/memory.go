package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/linkcore/internal/models"
)

// memState is the whole data set of a MemoryStorage. Transactions work on a
// copy and swap it in on success.
type memState struct {
	folders      map[string]models.Folder
	media        map[string]models.Media
	shortLinks   map[string]models.ShortLink
	digitalLinks map[string]models.DigitalLink
	activities   []models.LinkActivity
	events       []models.AnalyticsEvent
}

func newMemState() *memState {
	return &memState{
		folders:      make(map[string]models.Folder),
		media:        make(map[string]models.Media),
		shortLinks:   make(map[string]models.ShortLink),
		digitalLinks: make(map[string]models.DigitalLink),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.folders {
		c.folders[k] = v
	}
	for k, v := range s.media {
		c.media[k] = v
	}
	for k, v := range s.shortLinks {
		c.shortLinks[k] = v
	}
	for k, v := range s.digitalLinks {
		c.digitalLinks[k] = v
	}
	c.activities = append(c.activities, s.activities...)
	c.events = append(c.events, s.events...)
	return c
}

// memDB is shared by the entity stores of one MemoryStorage. mu is nil for
// the view handed to a transaction callback, which already holds the lock.
type memDB struct {
	mu    *sync.RWMutex
	state *memState
}

func (db *memDB) rlock() func() {
	if db.mu == nil {
		return func() {}
	}
	db.mu.RLock()
	return db.mu.RUnlock
}

func (db *memDB) lock() func() {
	if db.mu == nil {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// MemoryStorage keeps everything in process memory. It enforces the same
// unique keys as the Postgres schema.
type MemoryStorage struct {
	db *memDB
}

func CreateMemoryStorage() (*MemoryStorage, error) {
	return &MemoryStorage{
		db: &memDB{mu: &sync.RWMutex{}, state: newMemState()},
	}, nil
}

func (m *MemoryStorage) Folders() FolderStore { return memFolders{m.db} }
func (m *MemoryStorage) Media() MediaStore { return memMedia{m.db} }
func (m *MemoryStorage) ShortLinks() ShortLinkStore { return memShortLinks{m.db} }
func (m *MemoryStorage) DigitalLinks() DigitalLinkStore { return memDigitalLinks{m.db} }
func (m *MemoryStorage) Activities() ActivityStore { return memActivities{m.db} }
func (m *MemoryStorage) Events() EventStore { return memEvents{m.db} }
func (m *MemoryStorage) PingContext(context.Context) error { return nil }

func (m *MemoryStorage) WithinTx(ctx context.Context, fn func(Store) error) error {
	if m.db.mu == nil {
		return fn(m)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	tx := &MemoryStorage{db: &memDB{state: m.db.state.clone()}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.db.state = tx.db.state
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func derefEq(p *string, v string) bool {
	return p != nil && *p == v
}

// --- folders ---

type memFolders struct{ db *memDB }

func (s memFolders) pathTaken(companyID, path, excludeID string) bool {
	for _, f := range s.db.state.folders {
		if f.CompanyID == companyID && f.Path == path && f.ID != excludeID {
			return true
		}
	}
	return false
}

func (s memFolders) Create(_ context.Context, f *models.Folder) error {
	defer s.db.lock()()

	if s.pathTaken(f.CompanyID, f.Path, "") {
		return ErrConflict
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = now()
	f.UpdatedAt = f.CreatedAt
	s.db.state.folders[f.ID] = *f
	return nil
}

func (s memFolders) Get(_ context.Context, id, companyID string) (*models.Folder, error) {
	defer s.db.rlock()()

	f, ok := s.db.state.folders[id]
	if !ok || f.CompanyID != companyID {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (s memFolders) FindByPath(_ context.Context, companyID, path string) (*models.Folder, error) {
	defer s.db.rlock()()

	for _, f := range s.db.state.folders {
		if f.CompanyID == companyID && f.Path == path {
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (s memFolders) ListChildren(_ context.Context, parentID string) ([]models.Folder, error) {
	defer s.db.rlock()()

	children := make([]models.Folder, 0)
	for _, f := range s.db.state.folders {
		if derefEq(f.ParentID, parentID) {
			children = append(children, f)
		}
	}
	sortFolders(children)
	return children, nil
}

func (s memFolders) List(_ context.Context, filter models.FolderFilter) ([]models.Folder, error) {
	defer s.db.rlock()()

	folders := make([]models.Folder, 0)
	for _, f := range s.db.state.folders {
		if f.CompanyID != filter.CompanyID {
			continue
		}
		if filter.RootOnly && f.ParentID != nil {
			continue
		}
		if !filter.RootOnly && filter.ParentID != nil && !derefEq(f.ParentID, *filter.ParentID) {
			continue
		}
		if filter.Search != "" && !containsFold(f.Name, filter.Search) {
			continue
		}
		folders = append(folders, f)
	}
	sortFolders(folders)
	return folders, nil
}

func (s memFolders) Update(_ context.Context, f *models.Folder) error {
	defer s.db.lock()()

	existing, ok := s.db.state.folders[f.ID]
	if !ok {
		return ErrNotFound
	}
	if s.pathTaken(f.CompanyID, f.Path, f.ID) {
		return ErrConflict
	}
	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = now()
	s.db.state.folders[f.ID] = *f
	return nil
}

func (s memFolders) Delete(_ context.Context, id string) error {
	defer s.db.lock()()

	if _, ok := s.db.state.folders[id]; !ok {
		return ErrNotFound
	}
	delete(s.db.state.folders, id)
	return nil
}

func sortFolders(folders []models.Folder) {
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].Name != folders[j].Name {
			return folders[i].Name < folders[j].Name
		}
		return folders[i].ID < folders[j].ID
	})
}

// --- media ---

type memMedia struct{ db *memDB }

func (s memMedia) Create(_ context.Context, m *models.Media) error {
	defer s.db.lock()()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = now()
	m.UpdatedAt = m.CreatedAt
	s.db.state.media[m.ID] = *m
	return nil
}

func (s memMedia) Get(_ context.Context, id, companyID string) (*models.Media, error) {
	defer s.db.rlock()()

	m, ok := s.db.state.media[id]
	if !ok || m.CompanyID != companyID {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s memMedia) Update(_ context.Context, m *models.Media) error {
	defer s.db.lock()()

	existing, ok := s.db.state.media[m.ID]
	if !ok {
		return ErrNotFound
	}
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = now()
	s.db.state.media[m.ID] = *m
	return nil
}

func (s memMedia) Delete(_ context.Context, id string) error {
	defer s.db.lock()()

	if _, ok := s.db.state.media[id]; !ok {
		return ErrNotFound
	}
	delete(s.db.state.media, id)
	return nil
}

func (s memMedia) List(_ context.Context, filter models.MediaFilter) ([]models.Media, int, error) {
	defer s.db.rlock()()

	page, limit := models.NormalizePage(filter.Page, filter.Limit, 20)

	matched := make([]models.Media, 0)
	for _, m := range s.db.state.media {
		if m.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.Section != "" && m.Section != filter.Section {
			continue
		}
		if filter.RootOnly && m.FolderID != nil {
			continue
		}
		if !filter.RootOnly && filter.FolderID != nil && !derefEq(m.FolderID, *filter.FolderID) {
			continue
		}
		if filter.Search != "" &&
			!containsFold(m.Title, filter.Search) &&
			!containsFold(m.OriginalName, filter.Search) &&
			!containsFold(m.Description, filter.Search) {
			continue
		}
		matched = append(matched, m)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	start, end := models.Window(len(matched), page, limit)
	return matched[start:end], len(matched), nil
}

func (s memMedia) ListByFolders(_ context.Context, folderIDs []string) ([]models.Media, error) {
	defer s.db.rlock()()

	wanted := make(map[string]struct{}, len(folderIDs))
	for _, id := range folderIDs {
		wanted[id] = struct{}{}
	}

	items := make([]models.Media, 0)
	for _, m := range s.db.state.media {
		if m.FolderID == nil {
			continue
		}
		if _, ok := wanted[*m.FolderID]; ok {
			items = append(items, m)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s memMedia) ListByCompany(_ context.Context, companyID string) ([]models.Media, error) {
	defer s.db.rlock()()

	items := make([]models.Media, 0)
	for _, m := range s.db.state.media {
		if m.CompanyID == companyID {
			items = append(items, m)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Title != items[j].Title {
			return items[i].Title < items[j].Title
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s memMedia) UpdatePathByFolder(_ context.Context, folderID, path string) (int, error) {
	defer s.db.lock()()

	n := 0
	for id, m := range s.db.state.media {
		if derefEq(m.FolderID, folderID) {
			m.Path = models.StringPtr(path)
			m.UpdatedAt = now()
			s.db.state.media[id] = m
			n++
		}
	}
	return n, nil
}

func (s memMedia) CountByFolder(_ context.Context, folderID string) (int, error) {
	defer s.db.rlock()()

	n := 0
	for _, m := range s.db.state.media {
		if derefEq(m.FolderID, folderID) {
			n++
		}
	}
	return n, nil
}

// --- short links ---

type memShortLinks struct{ db *memDB }

func (s memShortLinks) codeTaken(code, excludeID string) bool {
	for _, l := range s.db.state.shortLinks {
		if l.ShortCode == code && l.ID != excludeID {
			return true
		}
	}
	return false
}

func (s memShortLinks) withClicks(l models.ShortLink) *models.ShortLink {
	l.Clicks = countEvents(s.db.state, models.KindShortLink, l.ID)
	return &l
}

func (s memShortLinks) Create(_ context.Context, l *models.ShortLink) error {
	defer s.db.lock()()

	if s.codeTaken(l.ShortCode, "") {
		return ErrConflict
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = now()
	l.UpdatedAt = l.CreatedAt
	s.db.state.shortLinks[l.ID] = *l
	return nil
}

func (s memShortLinks) Get(_ context.Context, id, companyID string) (*models.ShortLink, error) {
	defer s.db.rlock()()

	l, ok := s.db.state.shortLinks[id]
	if !ok || l.CompanyID != companyID {
		return nil, ErrNotFound
	}
	return s.withClicks(l), nil
}

func (s memShortLinks) FindByCode(_ context.Context, code string) (*models.ShortLink, error) {
	defer s.db.rlock()()

	for _, l := range s.db.state.shortLinks {
		if l.ShortCode == code {
			return s.withClicks(l), nil
		}
	}
	return nil, ErrNotFound
}

func (s memShortLinks) Update(_ context.Context, l *models.ShortLink) error {
	defer s.db.lock()()

	existing, ok := s.db.state.shortLinks[l.ID]
	if !ok {
		return ErrNotFound
	}
	if s.codeTaken(l.ShortCode, l.ID) {
		return ErrConflict
	}
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = now()
	s.db.state.shortLinks[l.ID] = *l
	return nil
}

func (s memShortLinks) Delete(_ context.Context, id string) error {
	defer s.db.lock()()

	if _, ok := s.db.state.shortLinks[id]; !ok {
		return ErrNotFound
	}
	delete(s.db.state.shortLinks, id)
	return nil
}

func (s memShortLinks) List(_ context.Context, filter models.LinkFilter) ([]models.ShortLink, int, error) {
	defer s.db.rlock()()

	page, limit := models.NormalizePage(filter.Page, filter.Limit, 10)

	matched := make([]models.ShortLink, 0)
	for _, l := range s.db.state.shortLinks {
		if l.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.CategoryID != "" && !derefEq(l.CategoryID, filter.CategoryID) {
			continue
		}
		if filter.Search != "" &&
			!containsFold(l.Title, filter.Search) &&
			!containsFold(l.Description, filter.Search) &&
			!containsFold(l.OriginalURL, filter.Search) &&
			!containsFold(l.ShortCode, filter.Search) {
			continue
		}
		matched = append(matched, *s.withClicks(l))
	}

	less := shortLinkLess(filter.SortBy)
	desc := !strings.EqualFold(filter.SortOrder, models.SortAsc)
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(&matched[j], &matched[i])
		}
		return less(&matched[i], &matched[j])
	})

	start, end := models.Window(len(matched), page, limit)
	return matched[start:end], len(matched), nil
}

func (s memShortLinks) CountByCompany(_ context.Context, companyID string) (int, error) {
	defer s.db.rlock()()

	n := 0
	for _, l := range s.db.state.shortLinks {
		if l.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func shortLinkLess(by string) func(a, b *models.ShortLink) bool {
	switch by {
	case "title":
		return func(a, b *models.ShortLink) bool { return a.Title < b.Title }
	case "shortCode":
		return func(a, b *models.ShortLink) bool { return a.ShortCode < b.ShortCode }
	case "originalUrl":
		return func(a, b *models.ShortLink) bool { return a.OriginalURL < b.OriginalURL }
	case "status":
		return func(a, b *models.ShortLink) bool { return a.Status < b.Status }
	case "clicks":
		return func(a, b *models.ShortLink) bool { return a.Clicks < b.Clicks }
	case "updatedAt":
		return func(a, b *models.ShortLink) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return func(a, b *models.ShortLink) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

// --- digital links ---

type memDigitalLinks struct{ db *memDB }

func (s memDigitalLinks) urlTaken(companyID string, gs1URL *string, excludeID string) bool {
	if gs1URL == nil {
		return false
	}
	for _, l := range s.db.state.digitalLinks {
		if l.CompanyID == companyID && derefEq(l.GS1URL, *gs1URL) && l.ID != excludeID {
			return true
		}
	}
	return false
}

func (s memDigitalLinks) withClicks(l models.DigitalLink) *models.DigitalLink {
	l.Clicks = countEvents(s.db.state, models.KindDigitalLink, l.ID)
	return &l
}

// oldestMatch returns the earliest created link accepted by match.
func (s memDigitalLinks) oldestMatch(match func(models.DigitalLink) bool) *models.DigitalLink {
	var found *models.DigitalLink
	for _, l := range s.db.state.digitalLinks {
		if !match(l) {
			continue
		}
		if found == nil || l.CreatedAt.Before(found.CreatedAt) ||
			(l.CreatedAt.Equal(found.CreatedAt) && l.ID < found.ID) {
			found = s.withClicks(l)
		}
	}
	return found
}

func (s memDigitalLinks) Create(_ context.Context, l *models.DigitalLink) error {
	defer s.db.lock()()

	if s.urlTaken(l.CompanyID, l.GS1URL, "") {
		return ErrConflict
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = now()
	l.UpdatedAt = l.CreatedAt
	s.db.state.digitalLinks[l.ID] = *l
	return nil
}

func (s memDigitalLinks) Get(_ context.Context, id, companyID string) (*models.DigitalLink, error) {
	defer s.db.rlock()()

	l, ok := s.db.state.digitalLinks[id]
	if !ok || l.CompanyID != companyID {
		return nil, ErrNotFound
	}
	return s.withClicks(l), nil
}

func (s memDigitalLinks) FindByURL(_ context.Context, companyID, gs1URL, excludeID string) (*models.DigitalLink, error) {
	defer s.db.rlock()()

	found := s.oldestMatch(func(l models.DigitalLink) bool {
		return l.CompanyID == companyID && derefEq(l.GS1URL, gs1URL) && l.ID != excludeID
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s memDigitalLinks) FindByPath(_ context.Context, gs1URL string) (*models.DigitalLink, error) {
	defer s.db.rlock()()

	found := s.oldestMatch(func(l models.DigitalLink) bool { return derefEq(l.GS1URL, gs1URL) })
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s memDigitalLinks) FindByKey(_ context.Context, key string) (*models.DigitalLink, error) {
	defer s.db.rlock()()

	found := s.oldestMatch(func(l models.DigitalLink) bool { return derefEq(l.GS1Key, key) })
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s memDigitalLinks) Update(_ context.Context, l *models.DigitalLink) error {
	defer s.db.lock()()

	existing, ok := s.db.state.digitalLinks[l.ID]
	if !ok {
		return ErrNotFound
	}
	if s.urlTaken(l.CompanyID, l.GS1URL, l.ID) {
		return ErrConflict
	}
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = now()
	s.db.state.digitalLinks[l.ID] = *l
	return nil
}

func (s memDigitalLinks) Delete(_ context.Context, id string) error {
	defer s.db.lock()()

	if _, ok := s.db.state.digitalLinks[id]; !ok {
		return ErrNotFound
	}
	delete(s.db.state.digitalLinks, id)
	return nil
}

func (s memDigitalLinks) List(_ context.Context, filter models.LinkFilter) ([]models.DigitalLink, int, error) {
	defer s.db.rlock()()

	page, limit := models.NormalizePage(filter.Page, filter.Limit, 10)

	matched := make([]models.DigitalLink, 0)
	for _, l := range s.db.state.digitalLinks {
		if l.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.CategoryID != "" && !derefEq(l.CategoryID, filter.CategoryID) {
			continue
		}
		if filter.Search != "" && !digitalLinkMatches(l, filter.Search) {
			continue
		}
		matched = append(matched, *s.withClicks(l))
	}

	less := digitalLinkLess(filter.SortBy)
	desc := !strings.EqualFold(filter.SortOrder, models.SortAsc)
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(&matched[j], &matched[i])
		}
		return less(&matched[i], &matched[j])
	})

	start, end := models.Window(len(matched), page, limit)
	return matched[start:end], len(matched), nil
}

func (s memDigitalLinks) CountByCompany(_ context.Context, companyID string) (int, error) {
	defer s.db.rlock()()

	n := 0
	for _, l := range s.db.state.digitalLinks {
		if l.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func digitalLinkMatches(l models.DigitalLink, search string) bool {
	if containsFold(l.Title, search) || containsFold(l.Description, search) {
		return true
	}
	for _, p := range []*string{l.GS1Key, l.GS1KeyType, l.GS1URL, l.CustomURL} {
		if p != nil && containsFold(*p, search) {
			return true
		}
	}
	return false
}

func digitalLinkLess(by string) func(a, b *models.DigitalLink) bool {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	switch by {
	case "title":
		return func(a, b *models.DigitalLink) bool { return a.Title < b.Title }
	case "gs1Key":
		return func(a, b *models.DigitalLink) bool { return str(a.GS1Key) < str(b.GS1Key) }
	case "gs1Url":
		return func(a, b *models.DigitalLink) bool { return str(a.GS1URL) < str(b.GS1URL) }
	case "status":
		return func(a, b *models.DigitalLink) bool { return a.Status < b.Status }
	case "clicks":
		return func(a, b *models.DigitalLink) bool { return a.Clicks < b.Clicks }
	case "updatedAt":
		return func(a, b *models.DigitalLink) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return func(a, b *models.DigitalLink) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

// --- activities ---

type memActivities struct{ db *memDB }

func (s memActivities) Append(_ context.Context, entries []models.LinkActivity) error {
	defer s.db.lock()()

	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now()
		}
		s.db.state.activities = append(s.db.state.activities, e)
	}
	return nil
}

func (s memActivities) Recent(_ context.Context, companyID string, limit int) ([]models.LinkActivity, error) {
	defer s.db.rlock()()

	if limit < 1 {
		limit = 5
	}

	items := make([]models.LinkActivity, 0)
	for _, e := range s.db.state.activities {
		if e.CompanyID == companyID {
			items = append(items, e)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// --- events ---

type memEvents struct{ db *memDB }

func countEvents(st *memState, kind models.LinkKind, linkID string) int {
	n := 0
	for _, e := range st.events {
		if e.Kind == kind && e.LinkID == linkID {
			n++
		}
	}
	return n
}

func (s memEvents) matching(q models.EventQuery) []models.AnalyticsEvent {
	items := make([]models.AnalyticsEvent, 0)
	for _, e := range s.db.state.events {
		if e.Kind == q.Kind && e.LinkID == q.LinkID && q.Range.Contains(e.Timestamp) {
			items = append(items, e)
		}
	}
	return items
}

func (s memEvents) Append(_ context.Context, e *models.AnalyticsEvent) error {
	defer s.db.lock()()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now()
	}
	s.db.state.events = append(s.db.state.events, *e)
	return nil
}

func (s memEvents) DeleteByLink(_ context.Context, kind models.LinkKind, linkID string) error {
	defer s.db.lock()()

	kept := s.db.state.events[:0:0]
	for _, e := range s.db.state.events {
		if e.Kind == kind && e.LinkID == linkID {
			continue
		}
		kept = append(kept, e)
	}
	s.db.state.events = kept
	return nil
}

func (s memEvents) List(_ context.Context, q models.EventQuery) ([]models.AnalyticsEvent, error) {
	defer s.db.rlock()()

	page, limit := models.NormalizePage(q.Page, q.Limit, 10)
	items := s.matching(q)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })

	start, end := models.Window(len(items), page, limit)
	return items[start:end], nil
}

func (s memEvents) Count(_ context.Context, q models.EventQuery) (int, error) {
	defer s.db.rlock()()

	return len(s.matching(q)), nil
}

func (s memEvents) GroupBy(_ context.Context, q models.EventQuery, dim models.Dimension) ([]models.Bucket, error) {
	defer s.db.rlock()()

	counts := make(map[string]int)
	for _, e := range s.matching(q) {
		counts[e.Value(dim)]++
	}

	buckets := make([]models.Bucket, 0, len(counts))
	for v, c := range counts {
		buckets = append(buckets, models.Bucket{Value: v, Count: c})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Value < buckets[j].Value })
	return buckets, nil
}

func (s memEvents) CountByCompany(_ context.Context, kind models.LinkKind, companyID string) (int, error) {
	defer s.db.rlock()()

	owned := make(map[string]struct{})
	switch kind {
	case models.KindShortLink:
		for id, l := range s.db.state.shortLinks {
			if l.CompanyID == companyID {
				owned[id] = struct{}{}
			}
		}
	case models.KindDigitalLink:
		for id, l := range s.db.state.digitalLinks {
			if l.CompanyID == companyID {
				owned[id] = struct{}{}
			}
		}
	}

	n := 0
	for _, e := range s.db.state.events {
		if _, ok := owned[e.LinkID]; ok && e.Kind == kind {
			n++
		}
	}
	return n, nil
}
