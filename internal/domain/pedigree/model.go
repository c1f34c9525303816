package pedigree

import "time"

const (
	DefaultGenerations = 3
	MaxGenerations     = 8
)

// Owner identifies who creates or edits a chart. Nickname places the chart in
// URLs; ID is the auth user id and decides who may change it.
type Owner struct {
	ID       string
	Nickname string
}

type Chart struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	Slug        string    `gorm:"size:64;not null;uniqueIndex:idx_charts_owner_slug"`
	Owner       string    `gorm:"not null;uniqueIndex:idx_charts_owner_slug"`
	OwnerID     string    `gorm:"not null;index"`
	RootID      *string   `gorm:"type:uuid"`
	Generations int       `gorm:"not null"`
	Notes       string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`

	Root *Person `gorm:"-"`
}

// Person is one ancestor box. Father and Mother are populated only when a
// tree is loaded; persistence goes through FatherID and MotherID.
type Person struct {
	ID       string  `gorm:"type:uuid;primaryKey"`
	ChartID  string  `gorm:"type:uuid;not null;index"`
	Head     string  `gorm:"type:text"`
	Tail     string  `gorm:"type:text"`
	FatherID *string `gorm:"type:uuid"`
	MotherID *string `gorm:"type:uuid"`

	Father *Person `gorm:"-"`
	Mother *Person `gorm:"-"`
}

// AncestorInput is the nested form of a submitted tree. Nil branches become
// empty persons as long as they are within the chart depth.
type AncestorInput struct {
	Head   string         `json:"head" validate:"max=500"`
	Tail   string         `json:"tail" validate:"max=500"`
	Father *AncestorInput `json:"father,omitempty"`
	Mother *AncestorInput `json:"mother,omitempty"`
}

type ChartInput struct {
	Slug        string
	Notes       string
	Generations int
	Root        *AncestorInput
}

func (Chart) TableName() string {
	return "charts"
}

func (Person) TableName() string {
	return "persons"
}

func (p *Person) father() *Person {
	if p == nil {
		return nil
	}
	return p.Father
}

func (p *Person) mother() *Person {
	if p == nil {
		return nil
	}
	return p.Mother
}

// Depth returns the number of persons on the longest root-to-leaf path.
func (p *Person) Depth() int {
	if p == nil {
		return 0
	}
	return 1 + max(p.Father.Depth(), p.Mother.Depth())
}

func idOf(p *Person) *string {
	if p == nil {
		return nil
	}
	id := p.ID
	return &id
}
