package pedigree

import "context"

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	SavePerson(ctx context.Context, person *Person) error
	ListPersonsByChart(ctx context.Context, chartID string) ([]Person, error)
	SaveChart(ctx context.Context, chart *Chart) error
	GetChartByOwnerSlug(ctx context.Context, owner, slug string) (*Chart, error)
	ListChartsByOwner(ctx context.Context, owner string) ([]Chart, error)
}

// PersonSaver is the slice of Repository the tree builder needs.
type PersonSaver interface {
	SavePerson(ctx context.Context, person *Person) error
}
