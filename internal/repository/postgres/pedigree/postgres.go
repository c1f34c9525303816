package pedigree

import (
	"context"
	"errors"

	"gorm.io/gorm"
	pedigreedomain "pedigree-chart-go/internal/domain/pedigree"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(pedigreedomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

// SavePerson inserts or updates by primary key.
func (r *PostgresRepository) SavePerson(ctx context.Context, person *pedigreedomain.Person) error {
	return r.db.WithContext(ctx).Save(person).Error
}

func (r *PostgresRepository) ListPersonsByChart(ctx context.Context, chartID string) ([]pedigreedomain.Person, error) {
	var persons []pedigreedomain.Person
	if err := r.db.WithContext(ctx).Where("chart_id = ?", chartID).Find(&persons).Error; err != nil {
		return nil, err
	}
	return persons, nil
}

func (r *PostgresRepository) SaveChart(ctx context.Context, chart *pedigreedomain.Chart) error {
	err := r.db.WithContext(ctx).Save(chart).Error
	// Needs gorm.Config.TranslateError, set by db.NewPostgres.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pedigreedomain.ErrSlugTaken
	}
	return err
}

func (r *PostgresRepository) GetChartByOwnerSlug(ctx context.Context, owner, slug string) (*pedigreedomain.Chart, error) {
	var chart pedigreedomain.Chart
	if err := r.db.WithContext(ctx).Where("owner = ? AND slug = ?", owner, slug).First(&chart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pedigreedomain.ErrChartNotFound
		}
		return nil, err
	}
	return &chart, nil
}

func (r *PostgresRepository) ListChartsByOwner(ctx context.Context, owner string) ([]pedigreedomain.Chart, error) {
	var charts []pedigreedomain.Chart
	if err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at asc").
		Find(&charts).Error; err != nil {
		return nil, err
	}
	return charts, nil
}
