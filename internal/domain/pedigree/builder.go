package pedigree

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Builder struct {
	saver PersonSaver
	newID func() string
}

func NewBuilder(saver PersonSaver) *Builder {
	return &Builder{saver: saver, newID: uuid.NewString}
}

// Build writes the tree for chart bottom-up, reusing persons from existing
// where a position is already occupied. The returned root is fully linked.
func (b *Builder) Build(ctx context.Context, chart *Chart, existing *Person, input *AncestorInput) (*Person, error) {
	if chart.Generations < 1 {
		return nil, ErrInvalidGenerations
	}
	return b.build(ctx, chart, existing, input, 1)
}

func (b *Builder) build(ctx context.Context, chart *Chart, cur *Person, input *AncestorInput, gen int) (*Person, error) {
	if gen > chart.Generations {
		return nil, nil
	}

	if cur == nil {
		cur = &Person{ID: b.newID(), ChartID: chart.ID}
	}

	var father, mother *AncestorInput
	cur.Head, cur.Tail = "", ""
	if input != nil {
		cur.Head = input.Head
		cur.Tail = input.Tail
		father = input.Father
		mother = input.Mother
	}

	fatherNode, err := b.build(ctx, chart, cur.Father, father, gen+1)
	if err != nil {
		return nil, err
	}
	motherNode, err := b.build(ctx, chart, cur.Mother, mother, gen+1)
	if err != nil {
		return nil, err
	}

	cur.Father, cur.FatherID = fatherNode, idOf(fatherNode)
	cur.Mother, cur.MotherID = motherNode, idOf(motherNode)

	if err := b.saver.SavePerson(ctx, cur); err != nil {
		return nil, fmt.Errorf("save person %s: %w", cur.ID, err)
	}
	return cur, nil
}

// LinkTree resolves the father and mother keys of persons into pointers and
// returns the person with rootID.
func LinkTree(rootID string, persons []Person) (*Person, error) {
	byID := make(map[string]*Person, len(persons))
	for i := range persons {
		p := &persons[i]
		p.Father, p.Mother = nil, nil
		byID[p.ID] = p
	}

	for _, p := range byID {
		if p.FatherID != nil {
			father, ok := byID[*p.FatherID]
			if !ok {
				return nil, fmt.Errorf("%w: father %s of %s", ErrBrokenTree, *p.FatherID, p.ID)
			}
			p.Father = father
		}
		if p.MotherID != nil {
			mother, ok := byID[*p.MotherID]
			if !ok {
				return nil, fmt.Errorf("%w: mother %s of %s", ErrBrokenTree, *p.MotherID, p.ID)
			}
			p.Mother = mother
		}
	}

	root, ok := byID[rootID]
	if !ok {
		return nil, fmt.Errorf("%w: root %s", ErrBrokenTree, rootID)
	}
	return root, nil
}
