package inmemory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	pedigreedomain "pedigree-chart-go/internal/domain/pedigree"
)

// PedigreeStore keeps charts and persons in process memory. It backs the
// STORE=memory mode and the HTTP tests.
type PedigreeStore struct {
	mu    sync.RWMutex
	state pedigreeState
	now   func() time.Time
}

type pedigreeState struct {
	charts  map[string]pedigreedomain.Chart
	persons map[string]pedigreedomain.Person
}

func NewPedigreeStore() *PedigreeStore {
	return &PedigreeStore{
		state: pedigreeState{
			charts:  make(map[string]pedigreedomain.Chart),
			persons: make(map[string]pedigreedomain.Person),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Transaction runs fn under the write lock and restores the previous state
// when fn fails.
func (s *PedigreeStore) Transaction(ctx context.Context, fn func(pedigreedomain.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := pedigreeState{
		charts:  maps.Clone(s.state.charts),
		persons: maps.Clone(s.state.persons),
	}
	if err := fn(&pedigreeTx{store: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *PedigreeStore) SavePerson(ctx context.Context, person *pedigreedomain.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savePerson(ctx, person)
}

func (s *PedigreeStore) ListPersonsByChart(ctx context.Context, chartID string) ([]pedigreedomain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPersonsByChart(ctx, chartID)
}

func (s *PedigreeStore) SaveChart(ctx context.Context, chart *pedigreedomain.Chart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveChart(ctx, chart)
}

func (s *PedigreeStore) GetChartByOwnerSlug(ctx context.Context, owner, slug string) (*pedigreedomain.Chart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getChartByOwnerSlug(ctx, owner, slug)
}

func (s *PedigreeStore) ListChartsByOwner(ctx context.Context, owner string) ([]pedigreedomain.Chart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listChartsByOwner(ctx, owner)
}

func (s *PedigreeStore) savePerson(ctx context.Context, person *pedigreedomain.Person) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := *person
	stored.Father, stored.Mother = nil, nil
	s.state.persons[person.ID] = stored
	return nil
}

func (s *PedigreeStore) listPersonsByChart(ctx context.Context, chartID string) ([]pedigreedomain.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]pedigreedomain.Person, 0)
	for _, person := range s.state.persons {
		if person.ChartID == chartID {
			result = append(result, person)
		}
	}
	return result, nil
}

func (s *PedigreeStore) saveChart(ctx context.Context, chart *pedigreedomain.Chart) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, existing := range s.state.charts {
		if id != chart.ID && existing.Owner == chart.Owner && existing.Slug == chart.Slug {
			return pedigreedomain.ErrSlugTaken
		}
	}

	now := s.now()
	if previous, ok := s.state.charts[chart.ID]; ok {
		chart.CreatedAt = previous.CreatedAt
	} else if chart.CreatedAt.IsZero() {
		chart.CreatedAt = now
	}
	chart.UpdatedAt = now

	stored := *chart
	stored.Root = nil
	s.state.charts[chart.ID] = stored
	return nil
}

func (s *PedigreeStore) getChartByOwnerSlug(ctx context.Context, owner, slug string) (*pedigreedomain.Chart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, chart := range s.state.charts {
		if chart.Owner == owner && chart.Slug == slug {
			result := chart
			return &result, nil
		}
	}
	return nil, pedigreedomain.ErrChartNotFound
}

func (s *PedigreeStore) listChartsByOwner(ctx context.Context, owner string) ([]pedigreedomain.Chart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]pedigreedomain.Chart, 0)
	for _, chart := range s.state.charts {
		if chart.Owner == owner {
			result = append(result, chart)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Slug < result[j].Slug
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// pedigreeTx runs against the store while Transaction holds the lock.
type pedigreeTx struct {
	store *PedigreeStore
}

func (t *pedigreeTx) Transaction(ctx context.Context, fn func(pedigreedomain.Repository) error) error {
	return fn(t)
}

func (t *pedigreeTx) SavePerson(ctx context.Context, person *pedigreedomain.Person) error {
	return t.store.savePerson(ctx, person)
}

func (t *pedigreeTx) ListPersonsByChart(ctx context.Context, chartID string) ([]pedigreedomain.Person, error) {
	return t.store.listPersonsByChart(ctx, chartID)
}

func (t *pedigreeTx) SaveChart(ctx context.Context, chart *pedigreedomain.Chart) error {
	return t.store.saveChart(ctx, chart)
}

func (t *pedigreeTx) GetChartByOwnerSlug(ctx context.Context, owner, slug string) (*pedigreedomain.Chart, error) {
	return t.store.getChartByOwnerSlug(ctx, owner, slug)
}

func (t *pedigreeTx) ListChartsByOwner(ctx context.Context, owner string) ([]pedigreedomain.Chart, error) {
	return t.store.listChartsByOwner(ctx, owner)
}
