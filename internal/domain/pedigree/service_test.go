package pedigree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"
)

type fakeRepo struct {
	charts  map[string]*Chart
	persons map[string]*Person
	saves   []string
	clock   time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		charts:  make(map[string]*Chart),
		persons: make(map[string]*Person),
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *fakeRepo) Transaction(ctx context.Context, fn func(Repository) error) error {
	return fn(r)
}

func (r *fakeRepo) SavePerson(ctx context.Context, person *Person) error {
	stored := *person
	stored.Father, stored.Mother = nil, nil
	r.persons[person.ID] = &stored
	r.saves = append(r.saves, person.ID)
	return nil
}

func (r *fakeRepo) ListPersonsByChart(ctx context.Context, chartID string) ([]Person, error) {
	result := make([]Person, 0)
	for _, person := range r.persons {
		if person.ChartID == chartID {
			result = append(result, *person)
		}
	}
	return result, nil
}

func (r *fakeRepo) SaveChart(ctx context.Context, chart *Chart) error {
	if chart.CreatedAt.IsZero() {
		r.clock = r.clock.Add(time.Minute)
		chart.CreatedAt = r.clock
	}
	stored := *chart
	stored.Root = nil
	r.charts[chart.ID] = &stored
	return nil
}

func (r *fakeRepo) GetChartByOwnerSlug(ctx context.Context, owner, slug string) (*Chart, error) {
	for _, chart := range r.charts {
		if chart.Owner == owner && chart.Slug == slug {
			result := *chart
			return &result, nil
		}
	}
	return nil, ErrChartNotFound
}

func (r *fakeRepo) ListChartsByOwner(ctx context.Context, owner string) ([]Chart, error) {
	result := make([]Chart, 0)
	for _, chart := range r.charts {
		if chart.Owner == owner {
			result = append(result, *chart)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

var (
	alice = Owner{ID: "u-alice", Nickname: "alice"}
	bob   = Owner{ID: "u-bob", Nickname: "bob"}
)

type countingRecorder struct {
	created, updated, persons int
}

func (c *countingRecorder) ChartCreated() { c.created++ }
func (c *countingRecorder) ChartUpdated() { c.updated++ }
func (c *countingRecorder) PersonsSaved(n int) { c.persons += n }

func TestCreateChartSuccess(t *testing.T) {
	repo := newFakeRepo()
	recorder := &countingRecorder{}
	svc := NewService(repo, WithRecorder(recorder))

	chart, err := svc.CreateChart(context.Background(), alice, ChartInput{
		Slug:  "  Smith-Family ",
		Notes: "from grandma",
		Root:  &AncestorInput{Head: "Jane", Tail: "Smith"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if chart.Slug != "smith-family" {
		t.Fatalf("expected normalized slug, got %q", chart.Slug)
	}
	if chart.Generations != DefaultGenerations {
		t.Fatalf("expected %d generations, got %d", DefaultGenerations, chart.Generations)
	}
	if chart.RootID == nil || *chart.RootID != chart.Root.ID {
		t.Fatalf("expected root id to match root, got %v", chart.RootID)
	}
	if len(repo.persons) != 7 {
		t.Fatalf("expected 7 persons, got %d", len(repo.persons))
	}
	if recorder.created != 1 || recorder.persons != 7 {
		t.Fatalf("unexpected recorder state %+v", recorder)
	}
	stored := repo.charts[chart.ID]
	if stored == nil || stored.Notes != "from grandma" || stored.Owner != "alice" || stored.OwnerID != "u-alice" {
		t.Fatalf("expected stored chart, got %+v", stored)
	}
}

func TestCreateChartSlugTaken(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	if _, err := svc.CreateChart(context.Background(), alice, ChartInput{Slug: "smith"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_, err := svc.CreateChart(context.Background(), alice, ChartInput{Slug: "Smith"})
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}

	if _, err := svc.CreateChart(context.Background(), bob, ChartInput{Slug: "smith"}); err != nil {
		t.Fatalf("expected other owner to reuse slug, got %v", err)
	}
}

func TestCreateChartInvalidSlug(t *testing.T) {
	svc := NewService(newFakeRepo())
	for _, slug := range []string{"", "   ", "has space", "-leading", "a/b", string(make([]byte, 65))} {
		_, err := svc.CreateChart(context.Background(), alice, ChartInput{Slug: slug})
		if !errors.Is(err, ErrInvalidSlug) {
			t.Fatalf("slug %q: expected ErrInvalidSlug, got %v", slug, err)
		}
	}
}

func TestCreateChartInvalidGenerations(t *testing.T) {
	svc := NewService(newFakeRepo())
	for _, gens := range []int{-1, MaxGenerations + 1} {
		_, err := svc.CreateChart(context.Background(), alice, ChartInput{Slug: "x", Generations: gens})
		if !errors.Is(err, ErrInvalidGenerations) {
			t.Fatalf("generations %d: expected ErrInvalidGenerations, got %v", gens, err)
		}
	}
}

func TestCreateChartRequiresOwner(t *testing.T) {
	svc := NewService(newFakeRepo())
	if _, err := svc.CreateChart(context.Background(), Owner{ID: "u1", Nickname: " "}, ChartInput{Slug: "x"}); err == nil {
		t.Fatalf("expected error for empty owner")
	}
	if _, err := svc.CreateChart(context.Background(), Owner{Nickname: "alice"}, ChartInput{Slug: "x"}); err == nil {
		t.Fatalf("expected error for missing user id")
	}
}

func TestCreateChartNicknameOfAnotherUser(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	if _, err := svc.CreateChart(context.Background(), alice, ChartInput{Slug: "family"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	impostor := Owner{ID: "u-other", Nickname: "alice"}
	for _, slug := range []string{"family", "another"} {
		_, err := svc.CreateChart(context.Background(), impostor, ChartInput{Slug: slug})
		if !errors.Is(err, ErrNotOwner) {
			t.Fatalf("slug %q: expected ErrNotOwner, got %v", slug, err)
		}
	}
	if len(repo.charts) != 1 {
		t.Fatalf("expected one chart, got %d", len(repo.charts))
	}
}

func TestWithGenerationsOption(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, WithGenerations(2))
	chart, err := svc.CreateChart(context.Background(), alice, ChartInput{Slug: "two"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if chart.Generations != 2 || len(repo.persons) != 3 {
		t.Fatalf("expected 2 generations and 3 persons, got %d and %d", chart.Generations, len(repo.persons))
	}

	if NewService(repo, WithGenerations(0)).Generations() != DefaultGenerations {
		t.Fatalf("expected out of range option to be ignored")
	}
}

func TestGetChartLinksTree(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, err := svc.CreateChart(context.Background(), alice, ChartInput{
		Slug: "tree",
		Root: &AncestorInput{
			Head:   "Subject",
			Father: &AncestorInput{Head: "Dad", Mother: &AncestorInput{Head: "Grandma"}},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	chart, err := svc.GetChart(context.Background(), "alice", "TREE")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if chart.Root == nil || chart.Root.Head != "Subject" {
		t.Fatalf("expected linked root, got %+v", chart.Root)
	}
	if got := chart.Root.Father.Mother.Head; got != "Grandma" {
		t.Fatalf("expected Grandma, got %q", got)
	}
	if chart.Root.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", chart.Root.Depth())
	}
}

func TestGetChartNotFound(t *testing.T) {
	svc := NewService(newFakeRepo())
	_, err := svc.GetChart(context.Background(), "alice", "missing")
	if !errors.Is(err, ErrChartNotFound) {
		t.Fatalf("expected ErrChartNotFound, got %v", err)
	}
}

func TestUpdateChartReusesPersons(t *testing.T) {
	repo := newFakeRepo()
	recorder := &countingRecorder{}
	svc := NewService(repo, WithRecorder(recorder))

	created, err := svc.CreateChart(context.Background(), alice, ChartInput{
		Slug: "edit",
		Root: &AncestorInput{Head: "Old"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	before := len(repo.persons)

	updated, err := svc.UpdateChart(context.Background(), alice, "edit", ChartInput{
		Notes: "revised",
		Root:  &AncestorInput{Head: "New", Mother: &AncestorInput{Head: "Mum"}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(repo.persons) != before {
		t.Fatalf("expected %d persons after update, got %d", before, len(repo.persons))
	}
	if updated.Root.ID != created.Root.ID {
		t.Fatalf("expected root reused, got %s want %s", updated.Root.ID, created.Root.ID)
	}
	if updated.Root.Head != "New" || updated.Root.Mother.Head != "Mum" {
		t.Fatalf("unexpected updated tree %+v", updated.Root)
	}
	if repo.charts[created.ID].Notes != "revised" {
		t.Fatalf("expected notes updated")
	}
	if recorder.updated != 1 {
		t.Fatalf("expected one update event, got %d", recorder.updated)
	}
}

func TestUpdateChartRequiresSameUserID(t *testing.T) {
	repo := newFakeRepo()
	recorder := &countingRecorder{}
	svc := NewService(repo, WithRecorder(recorder))

	created, err := svc.CreateChart(context.Background(), alice, ChartInput{
		Slug: "family",
		Root: &AncestorInput{Head: "Jane"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	impostor := Owner{ID: "u-other", Nickname: "alice"}
	_, err = svc.UpdateChart(context.Background(), impostor, "family", ChartInput{Root: &AncestorInput{Head: "PWNED"}})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if got := repo.persons[created.Root.ID].Head; got != "Jane" {
		t.Fatalf("expected root untouched, got %q", got)
	}
	if recorder.updated != 0 {
		t.Fatalf("expected no update event, got %d", recorder.updated)
	}
}

func TestUpdateChartKeepsGenerations(t *testing.T) {
	svc := NewService(newFakeRepo())
	if _, err := svc.CreateChart(context.Background(), alice, ChartInput{Slug: "family", Generations: 2}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err := svc.UpdateChart(context.Background(), alice, "family", ChartInput{Generations: 4})
	if !errors.Is(err, ErrInvalidGenerations) {
		t.Fatalf("expected ErrInvalidGenerations, got %v", err)
	}
	updated, err := svc.UpdateChart(context.Background(), alice, "family", ChartInput{Generations: 2, Notes: "same depth"})
	if err != nil {
		t.Fatalf("expected matching depth to be accepted, got %v", err)
	}
	if updated.Generations != 2 {
		t.Fatalf("expected 2 generations, got %d", updated.Generations)
	}
}

func TestUpdateChartNotFound(t *testing.T) {
	svc := NewService(newFakeRepo())
	_, err := svc.UpdateChart(context.Background(), alice, "missing", ChartInput{})
	if !errors.Is(err, ErrChartNotFound) {
		t.Fatalf("expected ErrChartNotFound, got %v", err)
	}
}

func TestListChartsOnlyOwner(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateChart(context.Background(), alice, ChartInput{Slug: fmt.Sprintf("a%d", i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := svc.CreateChart(context.Background(), bob, ChartInput{Slug: "b0"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	charts, err := svc.ListCharts(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(charts) != 3 {
		t.Fatalf("expected 3 charts, got %d", len(charts))
	}
	for i, chart := range charts {
		if chart.Owner != "alice" {
			t.Fatalf("expected only alice charts, got %q", chart.Owner)
		}
		if chart.Slug != fmt.Sprintf("a%d", i) {
			t.Fatalf("expected creation order, got %q at %d", chart.Slug, i)
		}
	}
}
