package pedigree

import (
	"html"
	"strconv"
	"strings"
)

const tableOpen = `<table cellpadding="0" cellspacing="0" border="0">`

var lineBreaks = strings.NewReplacer("\r\n", "<br/>", "\r", "<br/>", "\n", "<br/>")

// Render lays out the tree rooted at root as a table of 2^generations rows.
// A person at generation g spans 2^(generations-g) rows with its head cell
// and the same number with its tail cell, so the father subtree sits beside
// the head and the mother subtree beside the tail.
func Render(root *Person, generations int) string {
	if generations < 1 {
		generations = 1
	}
	rc := &renderContext{generations: generations}
	rc.b.WriteString(tableOpen)
	rc.person(root, 1, RoleNone)
	if rc.rowOpen {
		rc.b.WriteString("\n</tr>")
	}
	rc.b.WriteString("</table>")
	return rc.b.String()
}

type renderContext struct {
	b           strings.Builder
	generations int
	rowOpen     bool
}

func (rc *renderContext) person(p *Person, gen int, role Role) {
	if p == nil {
		p = &Person{}
	}
	rowspan := RowSpan(gen, rc.generations)

	rc.cell(p.Head, "head", rowspan, role)
	if gen < rc.generations {
		rc.person(p.Father, gen+1, RoleFather)
	}
	rc.cell(p.Tail, "tail", rowspan, role)
	if gen < rc.generations {
		rc.person(p.Mother, gen+1, RoleMother)
	}
}

func (rc *renderContext) cell(text, kind string, rowspan int, role Role) {
	if !rc.rowOpen {
		rc.b.WriteString("<tr>")
		rc.rowOpen = true
	}

	rc.b.WriteString("\t<td")
	if rowspan > 1 {
		rc.b.WriteString(` rowspan="`)
		rc.b.WriteString(strconv.Itoa(rowspan))
		rc.b.WriteString(`"`)
	}
	rc.b.WriteString(` class="`)
	rc.b.WriteString(kind)
	if leftBorder(kind, role) {
		rc.b.WriteString(" leftborder")
	}
	rc.b.WriteString(`">`)
	rc.b.WriteString(CellText(text))
	rc.b.WriteString("</td>")

	// Only leaf cells end a row; wider cells keep spanning the rows below.
	if rowspan == 1 {
		rc.b.WriteString("\n</tr>\n")
		rc.rowOpen = false
	}
}

// leftBorder marks the boundary between the paternal and maternal halves.
func leftBorder(kind string, role Role) bool {
	return (role == RoleFather && kind == "tail") || (role == RoleMother && kind == "head")
}

// RowSpan is 2^(generations-gen).
func RowSpan(gen, generations int) int {
	if gen >= generations {
		return 1
	}
	return 1 << (generations - gen)
}

// CellText escapes text and turns its line breaks into <br/>.
func CellText(text string) string {
	return lineBreaks.Replace(html.EscapeString(text))
}
