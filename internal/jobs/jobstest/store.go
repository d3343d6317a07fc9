package jobstest

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	contentrepo "github.com/yungbote/visiblee-backend/internal/data/repos/content"
	entityrepo "github.com/yungbote/visiblee-backend/internal/data/repos/entities"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/domain/entity"
	"github.com/yungbote/visiblee-backend/internal/domain/project"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
)

// Store is an in-memory content store. Its views (Content, Entities, ...)
// implement the repository interfaces over shared state so a stage writing
// through one repo is visible through the others.
type Store struct {
	mu sync.Mutex

	projects    map[uuid.UUID]*types.Project
	items       map[uuid.UUID]*types.ContentItem
	entities    map[uuid.UUID]*types.Entity
	links       map[[2]uuid.UUID]*types.ContentEntity
	scores      map[uuid.UUID]*types.ProjectScore
	briefs      map[uuid.UUID]*types.ContentBrief
	suggestions []*types.ContentSuggestion

	// FailWrites makes every mutating call return the error.
	FailWrites error
}

func NewStore() *Store {
	return &Store{
		projects: make(map[uuid.UUID]*types.Project),
		items:    make(map[uuid.UUID]*types.ContentItem),
		entities: make(map[uuid.UUID]*types.Entity),
		links:    make(map[[2]uuid.UUID]*types.ContentEntity),
		scores:   make(map[uuid.UUID]*types.ProjectScore),
		briefs:   make(map[uuid.UUID]*types.ContentBrief),
	}
}

func (s *Store) Content() *ContentRepo        { return &ContentRepo{s} }
func (s *Store) Entities() *EntityRepo        { return &EntityRepo{s} }
func (s *Store) Projects() *ProjectRepo       { return &ProjectRepo{s} }
func (s *Store) Scores() *ScoreRepo           { return &ScoreRepo{s} }
func (s *Store) Briefs() *BriefRepo           { return &BriefRepo{s} }
func (s *Store) Suggestions() *SuggestionRepo { return &SuggestionRepo{s} }

// AddProject stores p and returns it.
func (s *Store) AddProject(p *types.Project) *types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = project.StatusActive
	}
	s.projects[p.ID] = p
	return p
}

// AddItem stores it with defaults for the required columns.
func (s *Store) AddItem(it *types.ContentItem) *types.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addItemLocked(it)
	return it
}

func (s *Store) addItemLocked(it *types.ContentItem) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if it.Platform == "" {
		it.Platform = content.PlatformWebsite
	}
	if it.ContentType == "" {
		it.ContentType = content.TypeArticle
	}
	if it.Status == "" {
		it.Status = content.StatusDiscovered
	}
	if it.Source == "" {
		it.Source = content.SourceManual
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC().Add(time.Duration(len(s.items)) * time.Millisecond)
	}
	s.items[it.ID] = it
}

func (s *Store) Item(id uuid.UUID) *types.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[id]; ok {
		cp := *it
		return &cp
	}
	return nil
}

// EntityByLabel finds an entity by natural key.
func (s *Store) EntityByLabel(projectID uuid.UUID, label string, typ entity.Type) *types.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entities {
		if e.ProjectID == projectID && e.Label == label && e.Type == typ {
			cp := *e
			return &cp
		}
	}
	return nil
}

func (s *Store) LinkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

func (s *Store) EntityCount(projectID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entities {
		if e.ProjectID == projectID {
			n++
		}
	}
	return n
}

func (s *Store) Score(projectID uuid.UUID) *types.ProjectScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.scores[projectID]; ok {
		cp := *sc
		return &cp
	}
	return nil
}

// SetScore stores sc as-is, bypassing the upsert's stale reset.
func (s *Store) SetScore(sc *types.ProjectScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sc
	s.scores[sc.ProjectID] = &cp
}

func (s *Store) AllBriefs() []*types.ContentBrief {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.ContentBrief, 0, len(s.briefs))
	for _, b := range s.briefs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func (s *Store) AllSuggestions() []*types.ContentSuggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.ContentSuggestion(nil), s.suggestions...)
}

// ContentRepo implements repos.ContentItemRepo.
type ContentRepo struct{ s *Store }

func (r *ContentRepo) CreateIfAbsent(_ dbctx.Context, item *types.ContentItem) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return false, s.FailWrites
	}
	if item.ContentHash != nil {
		for _, it := range s.items {
			if it.ProjectID == item.ProjectID && it.ContentHash != nil && *it.ContentHash == *item.ContentHash {
				return false, nil
			}
		}
	}
	s.addItemLocked(item)
	return true, nil
}

func (r *ContentRepo) GetByIDs(_ dbctx.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*types.ContentItem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.ContentItem
	for _, id := range ids {
		if it, ok := s.items[id]; ok && it.ProjectID == projectID {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *ContentRepo) ListByProject(_ dbctx.Context, projectID uuid.UUID, f contentrepo.ListFilter) ([]*types.ContentItem, error) {
	out := r.s.filter(func(it *types.ContentItem) bool {
		return it.ProjectID == projectID &&
			(f.Status == "" || it.Status == f.Status) &&
			(f.Platform == "" || it.Platform == f.Platform)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) filter(keep func(*types.ContentItem) bool) []*types.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.ContentItem
	for _, it := range s.items {
		if keep(it) {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func limitItems(items []*types.ContentItem, limit int) []*types.ContentItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func (s *Store) extractable(projectID uuid.UUID) []*types.ContentItem {
	out := s.filter(func(it *types.ContentItem) bool {
		return it.ProjectID == projectID && it.Status == content.StatusApproved && it.HasText()
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastExtractedAt, out[j].LastExtractedAt
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		}
		return a.Before(*b)
	})
	return out
}

func (r *ContentRepo) ListExtractable(_ dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentItem, error) {
	return limitItems(r.s.extractable(projectID), limit), nil
}

func (r *ContentRepo) CountExtractable(_ dbctx.Context, projectID uuid.UUID) (int64, error) {
	return int64(len(r.s.extractable(projectID))), nil
}

func (s *Store) embeddable(projectID uuid.UUID) []*types.ContentItem {
	return s.filter(func(it *types.ContentItem) bool {
		return it.ProjectID == projectID && it.HasText() && it.Embedding == nil && it.Status != content.StatusArchived
	})
}

func (r *ContentRepo) ListEmbeddable(_ dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentItem, error) {
	return limitItems(r.s.embeddable(projectID), limit), nil
}

func (r *ContentRepo) CountEmbeddable(_ dbctx.Context, projectID uuid.UUID) (int64, error) {
	return int64(len(r.s.embeddable(projectID))), nil
}

func (s *Store) embedded(projectID uuid.UUID) []*types.ContentItem {
	out := s.filter(func(it *types.ContentItem) bool {
		return it.ProjectID == projectID && it.Embedding != nil && it.Status != content.StatusArchived
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r *ContentRepo) ListEmbedded(_ dbctx.Context, projectID uuid.UUID) ([]*types.ContentItem, error) {
	return r.s.embedded(projectID), nil
}

func (r *ContentRepo) CountEmbedded(_ dbctx.Context, projectID uuid.UUID) (int64, error) {
	return int64(len(r.s.embedded(projectID))), nil
}

func (s *Store) fetchable(projectID uuid.UUID, ids []uuid.UUID) []*types.ContentItem {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return s.filter(func(it *types.ContentItem) bool {
		if it.ProjectID != projectID || it.URL == nil || *it.URL == "" || it.RawContent != nil {
			return false
		}
		if it.Status != content.StatusDiscovered && it.Status != content.StatusApproved {
			return false
		}
		return len(ids) == 0 || want[it.ID]
	})
}

func (r *ContentRepo) ListFetchable(_ dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, limit int) ([]*types.ContentItem, error) {
	return limitItems(r.s.fetchable(projectID, ids), limit), nil
}

func (r *ContentRepo) CountFetchable(_ dbctx.Context, projectID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return int64(len(r.s.fetchable(projectID, ids))), nil
}

func (r *ContentRepo) CountByProject(_ dbctx.Context, projectID uuid.UUID) (int64, error) {
	return int64(len(r.s.filter(func(it *types.ContentItem) bool { return it.ProjectID == projectID }))), nil
}

func (r *ContentRepo) SetEmbedding(_ dbctx.Context, id uuid.UUID, vec []float32) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return false, s.FailWrites
	}
	if len(vec) != content.EmbeddingDimensions {
		return false, errors.New("embedding has wrong dimensionality")
	}
	it, ok := s.items[id]
	if !ok || it.Embedding != nil {
		return false, nil
	}
	v := pgvector.NewVector(vec)
	it.Embedding = &v
	return true, nil
}

func (r *ContentRepo) SetFetched(_ dbctx.Context, id uuid.UUID, f contentrepo.Fetched) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	raw, words, excerpt, crawled := f.RawContent, f.WordCount, f.Excerpt, f.CrawledAt
	it.RawContent, it.WordCount, it.Excerpt, it.LastCrawledAt = &raw, &words, &excerpt, &crawled
	if f.PublishedAt != nil {
		it.PublishedAt = f.PublishedAt
	}
	if f.Title != "" && (it.Title == "" || (it.URL != nil && it.Title == *it.URL)) {
		it.Title = f.Title
	}
	return nil
}

func (r *ContentRepo) MarkExtracted(_ dbctx.Context, ids []uuid.UUID, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	for _, id := range ids {
		if it, ok := s.items[id]; ok {
			t := at
			it.LastExtractedAt = &t
		}
	}
	return nil
}

func (r *ContentRepo) UpdateStatus(_ dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, to content.Status) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return 0, s.FailWrites
	}
	var n int64
	for _, id := range ids {
		it, ok := s.items[id]
		if !ok || it.ProjectID != projectID || !it.Status.CanTransition(to) {
			continue
		}
		it.Status = to
		it.UpdatedAt = time.Now().UTC()
		n++
	}
	return n, nil
}

func (r *ContentRepo) ArchiveByProject(_ dbctx.Context, projectID uuid.UUID) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range s.items {
		if it.ProjectID == projectID && it.Status != content.StatusArchived {
			it.Status = content.StatusArchived
			n++
		}
	}
	return n, nil
}

func (r *ContentRepo) SearchSimilar(_ dbctx.Context, projectID uuid.UUID, vec []float32, maxDistance float64, limit int) ([]contentrepo.SimilarItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []contentrepo.SimilarItem
	for _, it := range r.s.embedded(projectID) {
		if it.Status != content.StatusApproved {
			continue
		}
		d := cosineDistance(vec, it.Embedding.Slice())
		if d >= maxDistance {
			continue
		}
		out = append(out, contentrepo.SimilarItem{
			ID:          it.ID,
			Title:       it.Title,
			URL:         it.URL,
			Platform:    string(it.Platform),
			Excerpt:     it.Excerpt,
			PublishedAt: it.PublishedAt,
			Distance:    d,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func (r *ContentRepo) PlatformStats(_ dbctx.Context, projectID uuid.UUID, asOf time.Time) ([]contentrepo.PlatformStat, error) {
	sixMonths := asOf.AddDate(0, -6, 0)
	oneYear := asOf.AddDate(-1, 0, 0)
	byKey := map[string]*contentrepo.PlatformStat{}
	var keys []string
	for _, it := range r.s.filter(func(it *types.ContentItem) bool { return it.ProjectID == projectID }) {
		key := string(it.Platform) + "|" + string(it.Status)
		st, ok := byKey[key]
		if !ok {
			st = &contentrepo.PlatformStat{Platform: string(it.Platform), Status: string(it.Status)}
			byKey[key] = st
			keys = append(keys, key)
		}
		st.Items++
		if it.HasText() {
			st.WithText++
		}
		if it.WordCount != nil {
			st.WithWords++
			st.TotalWords += int64(*it.WordCount)
		}
		if it.Embedding != nil {
			st.Embedded++
		}
		if p := it.PublishedAt; p != nil {
			switch {
			case !p.Before(sixMonths):
				st.Recent++
			case !p.Before(oneYear):
				st.MidAge++
			default:
				st.Old++
			}
		}
	}
	sort.Strings(keys)
	out := make([]contentrepo.PlatformStat, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out, nil
}

// EntityRepo implements repos.EntityRepo.
type EntityRepo struct{ s *Store }

func (r *EntityRepo) UpsertByNaturalKey(_ dbctx.Context, projectID uuid.UUID, label string, typ entity.Type) (*types.Entity, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return nil, s.FailWrites
	}
	label = entity.NormalizeLabel(label)
	if projectID == uuid.Nil || label == "" {
		return nil, errors.New("entity natural key requires project_id and label")
	}
	for _, e := range s.entities {
		if e.ProjectID == projectID && e.Label == label && e.Type == typ {
			cp := *e
			return &cp, nil
		}
	}
	e := &types.Entity{ID: uuid.New(), ProjectID: projectID, Label: label, Type: typ}
	s.entities[e.ID] = e
	cp := *e
	return &cp, nil
}

func (r *EntityRepo) LinkContent(_ dbctx.Context, link *types.ContentEntity, refreshSalience bool) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return false, s.FailWrites
	}
	key := [2]uuid.UUID{link.ContentItemID, link.EntityID}
	if existing, ok := s.links[key]; ok {
		if refreshSalience {
			existing.Salience = link.Salience
		}
		return false, nil
	}
	cp := *link
	s.links[key] = &cp
	if e, ok := s.entities[link.EntityID]; ok {
		e.Frequency++
	}
	return true, nil
}

func (r *EntityRepo) ResetTopicLinks(_ dbctx.Context, projectID uuid.UUID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	for key := range s.links {
		if e, ok := s.entities[key[1]]; ok && e.ProjectID == projectID && e.Type == entity.TypeTopic {
			delete(s.links, key)
		}
	}
	for _, e := range s.entities {
		if e.ProjectID == projectID && e.Type == entity.TypeTopic {
			e.Frequency = 0
		}
	}
	return nil
}

func (r *EntityRepo) PruneEmptyTopics(_ dbctx.Context, projectID uuid.UUID) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.entities {
		if e.ProjectID == projectID && e.Type == entity.TypeTopic && e.Frequency == 0 {
			delete(s.entities, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) entitiesWhere(keep func(*types.Entity) bool) []*types.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Entity
	for _, e := range s.entities {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func byFrequencyDesc(out []*types.Entity) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Label < out[j].Label
	})
}

func (r *EntityRepo) ListByProject(_ dbctx.Context, projectID uuid.UUID, typ entity.Type, limit int) ([]*types.Entity, error) {
	out := r.s.entitiesWhere(func(e *types.Entity) bool {
		return e.ProjectID == projectID && (typ == "" || e.Type == typ)
	})
	byFrequencyDesc(out)
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *EntityRepo) TopByFrequency(_ dbctx.Context, projectID uuid.UUID, excludeTopics bool, limit int) ([]*types.Entity, error) {
	out := r.s.entitiesWhere(func(e *types.Entity) bool {
		return e.ProjectID == projectID && e.Frequency > 0 && (!excludeTopics || e.Type != entity.TypeTopic)
	})
	byFrequencyDesc(out)
	if limit <= 0 {
		limit = 10
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *EntityRepo) ListUnderCovered(_ dbctx.Context, projectID uuid.UUID, maxFrequency int, limit int) ([]*types.Entity, error) {
	out := r.s.entitiesWhere(func(e *types.Entity) bool {
		if e.ProjectID != projectID || e.Frequency <= 0 || e.Frequency > maxFrequency {
			return false
		}
		switch e.Type {
		case entity.TypeTopic, entity.TypeConcept, entity.TypeProduct, entity.TypeBrand:
			return true
		}
		return false
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency < out[j].Frequency
		}
		return out[i].Label < out[j].Label
	})
	if limit <= 0 {
		limit = 10
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *EntityRepo) ListLinksForItems(_ dbctx.Context, itemIDs []uuid.UUID) ([]entityrepo.LinkedEntity, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = true
	}
	var out []entityrepo.LinkedEntity
	for key, l := range s.links {
		if !want[key[0]] {
			continue
		}
		e := s.entities[key[1]]
		if e == nil {
			continue
		}
		out = append(out, entityrepo.LinkedEntity{
			EntityID:      e.ID,
			ContentItemID: key[0],
			Label:         e.Label,
			Type:          string(e.Type),
			Salience:      l.Salience,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Salience != out[j].Salience {
			return out[i].Salience > out[j].Salience
		}
		return strings.Compare(out[i].Label, out[j].Label) < 0
	})
	return out, nil
}

func (r *EntityRepo) Stats(_ dbctx.Context, projectID uuid.UUID) (*entityrepo.Stats, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &entityrepo.Stats{}
	for _, e := range s.entities {
		if e.ProjectID != projectID || e.Frequency <= 0 {
			continue
		}
		if e.Type == entity.TypeTopic {
			out.TopicSizes = append(out.TopicSizes, int64(e.Frequency))
			continue
		}
		out.Entities++
		if e.Frequency >= 2 {
			out.RecurringEntities++
		}
	}
	sort.Slice(out.TopicSizes, func(i, j int) bool { return out.TopicSizes[i] > out.TopicSizes[j] })
	inTopic := map[uuid.UUID]bool{}
	for key := range s.links {
		if e := s.entities[key[1]]; e != nil && e.ProjectID == projectID && e.Type == entity.TypeTopic {
			inTopic[key[0]] = true
		}
	}
	out.ItemsInTopics = int64(len(inTopic))
	return out, nil
}

// ProjectRepo implements repos.ProjectRepo.
type ProjectRepo struct{ s *Store }

func (r *ProjectRepo) Create(_ dbctx.Context, p *types.Project) error {
	if r.s.FailWrites != nil {
		return r.s.FailWrites
	}
	r.s.AddProject(p)
	return nil
}

func (r *ProjectRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *ProjectRepo) SetStatus(_ dbctx.Context, id uuid.UUID, status project.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.projects[id]; ok {
		p.Status = status
	}
	return nil
}

// ScoreRepo implements repos.ProjectScoreRepo.
type ScoreRepo struct{ s *Store }

func (r *ScoreRepo) UpsertByProjectID(_ dbctx.Context, score *types.ProjectScore) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	if score.ProjectID == uuid.Nil {
		return errors.New("project score requires project_id")
	}
	if prev, ok := s.scores[score.ProjectID]; ok {
		score.ID = prev.ID
	} else if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	score.IsStale = false
	cp := *score
	s.scores[score.ProjectID] = &cp
	return nil
}

func (r *ScoreRepo) GetByProjectID(_ dbctx.Context, projectID uuid.UUID) (*types.ProjectScore, error) {
	return r.s.Score(projectID), nil
}

func (r *ScoreRepo) MarkStale(_ dbctx.Context, projectID uuid.UUID, changedAt time.Time) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scores[projectID]
	if !ok || sc.IsStale || !sc.ComputedAt.Before(changedAt) {
		return false, nil
	}
	sc.IsStale = true
	return true, nil
}

func (r *ScoreRepo) RefreshStale(_ dbctx.Context, projectID uuid.UUID) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return false, s.FailWrites
	}
	sc, ok := s.scores[projectID]
	if !ok || sc.IsStale {
		return false, nil
	}
	for _, it := range s.items {
		if it.ProjectID == projectID && it.UpdatedAt.After(sc.ComputedAt) {
			sc.IsStale = true
			return true, nil
		}
	}
	return false, nil
}

// BriefRepo implements repos.ContentBriefRepo.
type BriefRepo struct{ s *Store }

func (r *BriefRepo) CreateMany(_ dbctx.Context, briefs []*types.ContentBrief) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	for _, b := range briefs {
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		if b.Status == "" {
			b.Status = project.BriefPending
		}
		cp := *b
		s.briefs[b.ID] = &cp
	}
	return nil
}

func (r *BriefRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.ContentBrief, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.briefs[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (r *BriefRepo) ListByProject(_ dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentBrief, error) {
	var out []*types.ContentBrief
	for _, b := range r.s.AllBriefs() {
		if b.ProjectID == projectID {
			cp := *b
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *BriefRepo) UpdateStatus(_ dbctx.Context, id uuid.UUID, status project.BriefStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.briefs[id]; ok {
		b.Status = status
	}
	return nil
}

func (r *BriefRepo) Delete(_ dbctx.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.briefs, id)
	return nil
}

// SuggestionRepo implements repos.ContentSuggestionRepo.
type SuggestionRepo struct{ s *Store }

func (r *SuggestionRepo) Create(_ dbctx.Context, sg *types.ContentSuggestion) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	if sg.ID == uuid.Nil {
		sg.ID = uuid.New()
	}
	cp := *sg
	s.suggestions = append(s.suggestions, &cp)
	return nil
}

func (r *SuggestionRepo) ListByProject(_ dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentSuggestion, error) {
	var out []*types.ContentSuggestion
	for _, sg := range r.s.AllSuggestions() {
		if sg.ProjectID == projectID {
			out = append(out, sg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
