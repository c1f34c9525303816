package pedigree

import "strings"

const (
	rootField  = "root"
	tailSuffix = "_tail"
)

type Role string

const (
	RoleNone   Role = ""
	RoleFather Role = "father"
	RoleMother Role = "mother"
)

// FieldSource is satisfied by url.Values.
type FieldSource interface {
	Get(key string) string
}

func FieldName(base string, role Role) string {
	if role == RoleNone {
		return base
	}
	return base + "_" + string(role)
}

func TailField(base string) string {
	return base + tailSuffix
}

// InputFromFields decodes the flat form convention (root, root_tail,
// root_father, root_father_tail, ...) into a nested input of depth
// generations.
func InputFromFields(source FieldSource, generations int) *AncestorInput {
	return inputFromFields(source, rootField, 1, generations)
}

func inputFromFields(source FieldSource, base string, gen, generations int) *AncestorInput {
	if gen > generations {
		return nil
	}
	return &AncestorInput{
		Head:   source.Get(base),
		Tail:   source.Get(TailField(base)),
		Father: inputFromFields(source, FieldName(base, RoleFather), gen+1, generations),
		Mother: inputFromFields(source, FieldName(base, RoleMother), gen+1, generations),
	}
}

// FormSlot describes one person box of the chart form.
type FormSlot struct {
	Name       string
	TailName   string
	Label      string
	Generation int
	Head       string
	Tail       string
}

// FormSlots lists the form boxes in pre-order, prefilled from root when the
// chart is being edited.
func FormSlots(root *Person, generations int) []FormSlot {
	var slots []FormSlot
	var walk func(p *Person, base string, path []Role, gen int)
	walk = func(p *Person, base string, path []Role, gen int) {
		if gen > generations {
			return
		}
		slot := FormSlot{
			Name:       base,
			TailName:   TailField(base),
			Label:      slotLabel(path),
			Generation: gen,
		}
		if p != nil {
			slot.Head, slot.Tail = p.Head, p.Tail
		}
		slots = append(slots, slot)
		walk(p.father(), FieldName(base, RoleFather), append(path[:len(path):len(path)], RoleFather), gen+1)
		walk(p.mother(), FieldName(base, RoleMother), append(path[:len(path):len(path)], RoleMother), gen+1)
	}
	walk(root, rootField, nil, 1)
	return slots
}

func slotLabel(path []Role) string {
	if len(path) == 0 {
		return "Subject"
	}
	parts := make([]string, len(path))
	for i, role := range path {
		word := string(role)
		if i == 0 {
			word = strings.ToUpper(word[:1]) + word[1:]
		}
		if i < len(path)-1 {
			word += "'s"
		}
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

// PreviewTree turns a submitted input into an unsaved tree so a rejected form
// can be shown again with what the user typed.
func PreviewTree(input *AncestorInput) *Person {
	if input == nil {
		return nil
	}
	return &Person{
		Head:   input.Head,
		Tail:   input.Tail,
		Father: PreviewTree(input.Father),
		Mother: PreviewTree(input.Mother),
	}
}
