package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/repository"
)

// Verify interface compliance
var (
	_ repository.TxManager                  = (*MockTxManager)(nil)
	_ repository.RawArticleRepository       = (*MockRawArticleRepository)(nil)
	_ repository.RewrittenArticleRepository = (*MockRewrittenArticleRepository)(nil)
	_ repository.ApprovedArticleRepository  = (*MockApprovedArticleRepository)(nil)
	_ repository.AISettingRepository        = (*MockAISettingRepository)(nil)
	_ repository.KeywordRewriteRepository   = (*MockKeywordRewriteRepository)(nil)
	_ repository.CategoryRepository         = (*MockCategoryRepository)(nil)
)

// Store is the shared in-memory state behind the mock repositories. The mock
// transaction manager snapshots it and restores the snapshot on error.
type Store struct {
	mu            sync.Mutex
	Raw           map[string]*models.RawArticle
	Rewritten     map[string]*models.RewrittenArticle
	Approved      map[string]*models.ApprovedArticle
	Setting       *models.AISetting
	Keyword       map[string]*models.KeywordRewrite
	Categories    map[string]*models.Category
	Subcategories map[string]*models.Subcategory
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		Raw:           make(map[string]*models.RawArticle),
		Rewritten:     make(map[string]*models.RewrittenArticle),
		Approved:      make(map[string]*models.ApprovedArticle),
		Keyword:       make(map[string]*models.KeywordRewrite),
		Categories:    make(map[string]*models.Category),
		Subcategories: make(map[string]*models.Subcategory),
	}
}

func (s *Store) snapshot() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := NewStore()
	for k, v := range s.Raw {
		c := *v
		cp.Raw[k] = &c
	}
	for k, v := range s.Rewritten {
		c := *v
		cp.Rewritten[k] = &c
	}
	for k, v := range s.Approved {
		c := *v
		cp.Approved[k] = &c
	}
	for k, v := range s.Keyword {
		c := *v
		cp.Keyword[k] = &c
	}
	for k, v := range s.Categories {
		c := *v
		cp.Categories[k] = &c
	}
	for k, v := range s.Subcategories {
		c := *v
		cp.Subcategories[k] = &c
	}
	if s.Setting != nil {
		c := *s.Setting
		cp.Setting = &c
	}
	return cp
}

func (s *Store) restore(from *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Raw = from.Raw
	s.Rewritten = from.Rewritten
	s.Approved = from.Approved
	s.Setting = from.Setting
	s.Keyword = from.Keyword
	s.Categories = from.Categories
	s.Subcategories = from.Subcategories
}

// NewRepositories wires every mock repository over one store
func NewRepositories() (*repository.Repositories, *Store) {
	store := NewStore()
	return &repository.Repositories{
		Tx:        &MockTxManager{Store: store},
		Raw:       &MockRawArticleRepository{Store: store},
		Rewritten: &MockRewrittenArticleRepository{Store: store},
		Approved:  &MockApprovedArticleRepository{Store: store},
		AISetting: &MockAISettingRepository{Store: store},
		Keyword:   &MockKeywordRewriteRepository{Store: store},
		Category:  &MockCategoryRepository{Store: store},
	}, store
}

// MockTxManager runs fn and rolls the store back if it fails
type MockTxManager struct {
	Store   *Store
	Commits int
	Rolls   int
}

func (m *MockTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	snap := m.Store.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.Store.restore(snap)
			m.Rolls++
			panic(p)
		}
		if err != nil {
			m.Store.restore(snap)
			m.Rolls++
			return
		}
		m.Commits++
	}()
	return fn(ctx)
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit <= 0 {
		limit = 50
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func idEquals(p *string, id string) bool {
	return p != nil && *p == id
}

// MockRawArticleRepository is a mock implementation of RawArticleRepository
type MockRawArticleRepository struct {
	Store            *Store
	InsertError      error
	BatchInsertCalls int
}

func (m *MockRawArticleRepository) Create(ctx context.Context, a *models.RawArticle) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	c := *a
	m.Store.Raw[a.ID] = &c
	return nil
}

func (m *MockRawArticleRepository) BatchInsert(ctx context.Context, articles []*models.RawArticle) (int, error) {
	m.BatchInsertCalls++
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	for _, a := range articles {
		c := *a
		m.Store.Raw[a.ID] = &c
	}
	return len(articles), nil
}

func (m *MockRawArticleRepository) GetByID(ctx context.Context, id string) (*models.RawArticle, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	a, ok := m.Store.Raw[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (m *MockRawArticleRepository) List(ctx context.Context, f models.RawFilter) ([]*models.RawArticle, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	var out []*models.RawArticle
	for _, a := range m.Store.Raw {
		if f.SourceName != "" && a.SourceName != f.SourceName {
			continue
		}
		if f.Search != "" && !containsFold(a.Title, f.Search) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (m *MockRawArticleRepository) SetRewrittenID(ctx context.Context, id, rewrittenID string) error {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	if a, ok := m.Store.Raw[id]; ok {
		a.RewrittenID = &rewrittenID
	}
	return nil
}

func (m *MockRawArticleRepository) Count(ctx context.Context) (int, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	return len(m.Store.Raw), nil
}

// MockRewrittenArticleRepository is a mock implementation of RewrittenArticleRepository
type MockRewrittenArticleRepository struct {
	Store       *Store
	UpdateError error
	DeleteError error
	// StickyDeletes makes Delete report success without removing the row
	StickyDeletes bool
}

func (m *MockRewrittenArticleRepository) Create(ctx context.Context, a *models.RewrittenArticle) error {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	c := *a
	m.Store.Rewritten[a.ID] = &c
	return nil
}

func (m *MockRewrittenArticleRepository) Update(ctx context.Context, a *models.RewrittenArticle) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	if _, ok := m.Store.Rewritten[a.ID]; ok {
		c := *a
		m.Store.Rewritten[a.ID] = &c
	}
	return nil
}

func (m *MockRewrittenArticleRepository) GetByID(ctx context.Context, id string) (*models.RewrittenArticle, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	a, ok := m.Store.Rewritten[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (m *MockRewrittenArticleRepository) GetForUpdate(ctx context.Context, id string) (*models.RewrittenArticle, error) {
	return m.GetByID(ctx, id)
}

func (m *MockRewrittenArticleRepository) List(ctx context.Context, f models.DraftFilter) ([]*models.RewrittenArticle, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	var out []*models.RewrittenArticle
	for _, a := range m.Store.Rewritten {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.CategoryID != "" && !idEquals(a.CategoryID, f.CategoryID) {
			continue
		}
		if f.AIGenerated != nil && a.AIGenerated != *f.AIGenerated {
			continue
		}
		if f.Search != "" && !containsFold(a.Title, f.Search) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (m *MockRewrittenArticleRepository) TransitionStatus(ctx context.Context, id string, from, to models.DraftStatus) (bool, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	a, ok := m.Store.Rewritten[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockRewrittenArticleRepository) Delete(ctx context.Context, id string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	if _, ok := m.Store.Rewritten[id]; !ok {
		return false, nil
	}
	if !m.StickyDeletes {
		delete(m.Store.Rewritten, id)
	}
	return true, nil
}

func (m *MockRewrittenArticleRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	_, ok := m.Store.Rewritten[id]
	return ok, nil
}

func (m *MockRewrittenArticleRepository) CountAIGeneratedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	count := 0
	for _, a := range m.Store.Rewritten {
		if a.UserID == userID && a.AIGenerated && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MockRewrittenArticleRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	promoted := make(map[string]bool)
	for _, a := range m.Store.Approved {
		if a.OriginalArticleID != nil {
			promoted[*a.OriginalArticleID] = true
		}
	}
	var removed int64
	for id, d := range m.Store.Rewritten {
		if d.OriginalArticleID != nil && promoted[*d.OriginalArticleID] {
			delete(m.Store.Rewritten, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MockRewrittenArticleRepository) Count(ctx context.Context) (int, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	return len(m.Store.Rewritten), nil
}

// MockApprovedArticleRepository is a mock implementation of ApprovedArticleRepository
type MockApprovedArticleRepository struct {
	Store       *Store
	InsertError error
	InsertCalls int
}

func (m *MockApprovedArticleRepository) slugTaken(slug, exceptID string) bool {
	for _, a := range m.Store.Approved {
		if a.Slug == slug && a.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *MockApprovedArticleRepository) InsertIfSlugFree(ctx context.Context, a *models.ApprovedArticle) (bool, error) {
	m.InsertCalls++
	if m.InsertError != nil {
		return false, m.InsertError
	}
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	if m.slugTaken(a.Slug, "") {
		return false, nil
	}
	c := *a
	m.Store.Approved[a.ID] = &c
	return true, nil
}

func (m *MockApprovedArticleRepository) Update(ctx context.Context, a *models.ApprovedArticle) error {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	if m.slugTaken(a.Slug, a.ID) {
		return repository.ErrDuplicateSlug
	}
	if _, ok := m.Store.Approved[a.ID]; ok {
		c := *a
		m.Store.Approved[a.ID] = &c
	}
	return nil
}

func (m *MockApprovedArticleRepository) find(match func(*models.ApprovedArticle) bool) *models.ApprovedArticle {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	var found *models.ApprovedArticle
	for _, a := range m.Store.Approved {
		if match(a) && (found == nil || a.CreatedAt.After(found.CreatedAt)) {
			found = a
		}
	}
	if found == nil {
		return nil
	}
	c := *found
	return &c
}

func (m *MockApprovedArticleRepository) GetByID(ctx context.Context, id string) (*models.ApprovedArticle, error) {
	return m.find(func(a *models.ApprovedArticle) bool { return a.ID == id }), nil
}

func (m *MockApprovedArticleRepository) GetBySlug(ctx context.Context, slug string) (*models.ApprovedArticle, error) {
	return m.find(func(a *models.ApprovedArticle) bool { return a.Slug == slug }), nil
}

func (m *MockApprovedArticleRepository) GetByOriginalArticleID(ctx context.Context, originalID string) (*models.ApprovedArticle, error) {
	return m.find(func(a *models.ApprovedArticle) bool { return idEquals(a.OriginalArticleID, originalID) }), nil
}

func (m *MockApprovedArticleRepository) List(ctx context.Context, f models.ApprovedFilter) ([]*models.ApprovedArticle, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	var out []*models.ApprovedArticle
	for _, a := range m.Store.Approved {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.CategoryID != "" && !idEquals(a.CategoryID, f.CategoryID) {
			continue
		}
		if f.Search != "" && !containsFold(a.Title, f.Search) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (m *MockApprovedArticleRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	return m.slugTaken(slug, ""), nil
}

func (m *MockApprovedArticleRepository) SetPublication(ctx context.Context, id string, status models.PublishStatus, publishedAt *time.Time) (bool, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	a, ok := m.Store.Approved[id]
	if !ok {
		return false, nil
	}
	a.Status = status
	a.PublishedAt = publishedAt
	return true, nil
}

func (m *MockApprovedArticleRepository) Delete(ctx context.Context, id string) (bool, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	if _, ok := m.Store.Approved[id]; !ok {
		return false, nil
	}
	delete(m.Store.Approved, id)
	return true, nil
}

func (m *MockApprovedArticleRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	_, ok := m.Store.Approved[id]
	return ok, nil
}

func (m *MockApprovedArticleRepository) Count(ctx context.Context) (int, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	return len(m.Store.Approved), nil
}

func (m *MockApprovedArticleRepository) StreamPublished(ctx context.Context, callback func(*models.ApprovedArticle) error) error {
	published, _ := m.List(ctx, models.ApprovedFilter{Status: models.PublishStatusPublished, Limit: 1 << 30})
	sort.Slice(published, func(i, j int) bool {
		return published[i].PublishedAt != nil && published[j].PublishedAt != nil &&
			published[i].PublishedAt.After(*published[j].PublishedAt)
	})
	for _, a := range published {
		if err := callback(a); err != nil {
			return err
		}
	}
	return nil
}

// MockAISettingRepository is a mock implementation of AISettingRepository
type MockAISettingRepository struct {
	Store    *Store
	GetCalls int
	GetError error
}

func (m *MockAISettingRepository) Get(ctx context.Context) (*models.AISetting, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	m.GetCalls++
	if m.GetError != nil {
		return nil, m.GetError
	}
	if m.Store.Setting == nil {
		return nil, nil
	}
	c := *m.Store.Setting
	return &c, nil
}

func (m *MockAISettingRepository) Save(ctx context.Context, s *models.AISetting) error {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	s.UpdatedAt = time.Now()
	c := *s
	m.Store.Setting = &c
	return nil
}

// MockKeywordRewriteRepository is a mock implementation of KeywordRewriteRepository
type MockKeywordRewriteRepository struct {
	Store *Store
}

func (m *MockKeywordRewriteRepository) Create(ctx context.Context, job *models.KeywordRewrite) error {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	c := *job
	m.Store.Keyword[job.ID] = &c
	return nil
}

func (m *MockKeywordRewriteRepository) Update(ctx context.Context, job *models.KeywordRewrite) error {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	c := *job
	m.Store.Keyword[job.ID] = &c
	return nil
}

func (m *MockKeywordRewriteRepository) GetByID(ctx context.Context, id string) (*models.KeywordRewrite, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	job, ok := m.Store.Keyword[id]
	if !ok {
		return nil, nil
	}
	c := *job
	return &c, nil
}

func (m *MockKeywordRewriteRepository) List(ctx context.Context, status models.JobStatus, limit int) ([]*models.KeywordRewrite, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	var out []*models.KeywordRewrite
	for _, job := range m.Store.Keyword {
		if status != "" && job.Status != status {
			continue
		}
		c := *job
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (m *MockKeywordRewriteRepository) GetPendingJobs(ctx context.Context) ([]*models.KeywordRewrite, error) {
	jobs, _ := m.List(ctx, models.JobStatusPending, 1<<30)
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

func (m *MockKeywordRewriteRepository) MarkAsProcessing(ctx context.Context, id string, from models.JobStatus) (bool, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	job, ok := m.Store.Keyword[id]
	if !ok || job.Status != from {
		return false, nil
	}
	now := time.Now()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	job.CompletedAt = nil
	job.ErrorMessage = ""
	job.Attempts++
	return true, nil
}

func (m *MockKeywordRewriteRepository) Count(ctx context.Context) (int, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	return len(m.Store.Keyword), nil
}

// MockCategoryRepository is a mock implementation of CategoryRepository
type MockCategoryRepository struct {
	Store *Store
}

func (m *MockCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	for _, existing := range m.Store.Categories {
		if existing.Slug == c.Slug {
			return repository.ErrDuplicateSlug
		}
	}
	cp := *c
	cp.Subcategories = nil
	m.Store.Categories[c.ID] = &cp
	return nil
}

func (m *MockCategoryRepository) CreateSubcategory(ctx context.Context, s *models.Subcategory) error {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	for _, existing := range m.Store.Subcategories {
		if existing.CategoryID == s.CategoryID && existing.Slug == s.Slug {
			return repository.ErrDuplicateSlug
		}
	}
	cp := *s
	m.Store.Subcategories[s.ID] = &cp
	return nil
}

func (m *MockCategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	var out []*models.Category
	byID := make(map[string]*models.Category)
	for _, c := range m.Store.Categories {
		cp := *c
		cp.Subcategories = nil
		out = append(out, &cp)
		byID[cp.ID] = &cp
	}
	for _, s := range m.Store.Subcategories {
		if parent, ok := byID[s.CategoryID]; ok {
			parent.Subcategories = append(parent.Subcategories, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockCategoryRepository) GetAllIDs(ctx context.Context) ([]string, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	ids := make([]string, 0, len(m.Store.Categories))
	for id := range m.Store.Categories {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockCategoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.Store.mu.Lock()
	defer m.Store.mu.Unlock()
	_, ok := m.Store.Categories[id]
	return ok, nil
}
