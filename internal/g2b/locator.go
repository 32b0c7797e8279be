package g2b

import "fmt"

// Locator is an opaque CSS selector addressing one clickable element. The
// rest of the package treats it as a value; only this file knows how the
// portal's grid ids are shaped.
type Locator string

// Selector returns the CSS selector to feed the browser session.
func (l Locator) Selector() string { return string(l) }

// CellScheme generates per-cell locators for the portal's grid widget, whose
// cells carry ids of the form "<prefix>_cell_<row>_<col>".
type CellScheme struct {
	Prefix      string
	TitleColumn int
	MaxRows     int
}

// DefaultCellScheme matches the bid-notice list grid as currently deployed.
func DefaultCellScheme() CellScheme {
	return CellScheme{
		Prefix:      "mf_wfm_container_tacBidPbancLst_contents_tab2_body_gridView1",
		TitleColumn: 6,
		MaxRows:     20,
	}
}

// Cell returns the locator for one grid cell.
func (s CellScheme) Cell(row, col int) Locator {
	return Locator(fmt.Sprintf("#%s_cell_%d_%d", s.Prefix, row, col))
}

// TitleCell returns the locator for the title cell of a row.
func (s CellScheme) TitleCell(row int) Locator {
	return s.Cell(row, s.TitleColumn)
}

// TitleLink returns the locator for the clickable link inside a title cell.
func (s CellScheme) TitleLink(row int) Locator {
	return Locator(s.TitleCell(row).Selector() + " a")
}
