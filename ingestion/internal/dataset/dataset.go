package dataset

import "slices"

// Dataset is an in-memory table loaded from a CSV file. Values are kept as the
// raw field text so that writing a Dataset back out reproduces the input cells.
type Dataset struct {
	Header []string
	Rows   [][]string
}

func New(header []string, rows [][]string) *Dataset {
	return &Dataset{Header: header, Rows: rows}
}

// Len returns the number of data rows, excluding the header.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

func (d *Dataset) Columns() []string {
	return slices.Clone(d.Header)
}

// Subset returns a new Dataset holding the rows at the given indices, in index
// order. Row slices are shared with the receiver and must be treated as
// read-only.
func (d *Dataset) Subset(indices []int) *Dataset {
	rows := make([][]string, 0, len(indices))
	for _, idx := range indices {
		rows = append(rows, d.Rows[idx])
	}
	return &Dataset{Header: d.Header, Rows: rows}
}
