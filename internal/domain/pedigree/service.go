package pedigree

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const maxSlugLength = 64

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Recorder receives chart lifecycle events. The metrics package implements it.
type Recorder interface {
	ChartCreated()
	ChartUpdated()
	PersonsSaved(n int)
}

type noopRecorder struct{}

func (noopRecorder) ChartCreated() {}
func (noopRecorder) ChartUpdated() {}
func (noopRecorder) PersonsSaved(int) {}

type Service struct {
	repo        Repository
	recorder    Recorder
	generations int
	newID       func() string
}

type Option func(*Service)

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithGenerations sets the depth used when a chart input does not name one.
func WithGenerations(generations int) Option {
	return func(s *Service) {
		if generations >= 1 && generations <= MaxGenerations {
			s.generations = generations
		}
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		recorder:    noopRecorder{},
		generations: DefaultGenerations,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Generations() int {
	return s.generations
}

func NormalizeSlug(slug string) (string, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" || len(slug) > maxSlugLength || !slugPattern.MatchString(slug) {
		return "", ErrInvalidSlug
	}
	return slug, nil
}

// CreateChart stores a new chart under owner.Nickname. A nickname already
// holding charts of another user id is refused with ErrNotOwner.
func (s *Service) CreateChart(ctx context.Context, owner Owner, input ChartInput) (*Chart, error) {
	owner.ID = strings.TrimSpace(owner.ID)
	owner.Nickname = strings.TrimSpace(owner.Nickname)
	if owner.ID == "" || owner.Nickname == "" {
		return nil, fmt.Errorf("owner is required")
	}
	slug, err := NormalizeSlug(input.Slug)
	if err != nil {
		return nil, err
	}
	generations := input.Generations
	if generations == 0 {
		generations = s.generations
	}
	if generations < 1 || generations > MaxGenerations {
		return nil, ErrInvalidGenerations
	}

	var result Chart
	var saved int
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		existing, err := tx.ListChartsByOwner(ctx, owner.Nickname)
		if err != nil {
			return err
		}
		for _, chart := range existing {
			if chart.OwnerID != owner.ID {
				return ErrNotOwner
			}
			if chart.Slug == slug {
				return ErrSlugTaken
			}
		}

		chart := Chart{
			ID:          s.newID(),
			Slug:        slug,
			Owner:       owner.Nickname,
			OwnerID:     owner.ID,
			Generations: generations,
			Notes:       input.Notes,
		}

		counter := &countingSaver{next: tx}
		root, err := NewBuilder(counter).Build(ctx, &chart, nil, input.Root)
		if err != nil {
			return err
		}
		chart.RootID = idOf(root)

		if err := tx.SaveChart(ctx, &chart); err != nil {
			return err
		}
		saved = counter.saved

		chart.Root = root
		result = chart
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.PersonsSaved(saved)
	s.recorder.ChartCreated()
	return &result, nil
}

// UpdateChart rewrites the names and notes of an existing chart in place.
// Persons keep their ids; the generation count never changes. Only the user
// id that created the chart may update it.
func (s *Service) UpdateChart(ctx context.Context, owner Owner, slug string, input ChartInput) (*Chart, error) {
	var result Chart
	var saved int
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		chart, err := loadChart(ctx, tx, owner.Nickname, slug)
		if err != nil {
			return err
		}
		if owner.ID == "" || chart.OwnerID != owner.ID {
			return ErrNotOwner
		}
		if input.Generations != 0 && input.Generations != chart.Generations {
			return ErrInvalidGenerations
		}

		counter := &countingSaver{next: tx}
		root, err := NewBuilder(counter).Build(ctx, chart, chart.Root, input.Root)
		if err != nil {
			return err
		}
		chart.RootID = idOf(root)
		chart.Notes = input.Notes

		if err := tx.SaveChart(ctx, chart); err != nil {
			return err
		}
		saved = counter.saved

		chart.Root = root
		result = *chart
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.PersonsSaved(saved)
	s.recorder.ChartUpdated()
	return &result, nil
}

func (s *Service) GetChart(ctx context.Context, owner, slug string) (*Chart, error) {
	return loadChart(ctx, s.repo, owner, slug)
}

func (s *Service) ListCharts(ctx context.Context, owner string) ([]Chart, error) {
	return s.repo.ListChartsByOwner(ctx, owner)
}

func loadChart(ctx context.Context, repo Repository, owner, slug string) (*Chart, error) {
	chart, err := repo.GetChartByOwnerSlug(ctx, owner, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if chart.RootID == nil {
		return chart, nil
	}

	persons, err := repo.ListPersonsByChart(ctx, chart.ID)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	root, err := LinkTree(*chart.RootID, persons)
	if err != nil {
		return nil, err
	}
	chart.Root = root
	return chart, nil
}

type countingSaver struct {
	next  PersonSaver
	saved int
}

func (c *countingSaver) SavePerson(ctx context.Context, person *Person) error {
	if err := c.next.SavePerson(ctx, person); err != nil {
		return err
	}
	c.saved++
	return nil
}
