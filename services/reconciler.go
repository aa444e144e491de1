package services

import "fmt"

// Column is one named cell of a record.
type Column struct {
	Name  string
	Value string
}

// Record is an ordered set of columns, the shape of one export row.
type Record []Column

// Get returns the value of the first column called name, or "".
func (r Record) Get(name string) string {
	for _, c := range r {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Table is an append-only tabular export. Every row has len(Columns) cells;
// an empty string means no value.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Reconcile appends rec to existing and returns a new table whose columns are
// existing's columns in their order followed by rec's unseen columns in
// first-seen order. Older rows get empty cells for new columns and the new row
// gets empty cells for columns it does not carry. A nil existing table is
// treated as empty. Neither input is modified.
//
// Existing columns are matched by position, after normalizeTable has given
// every cell a distinct header, so repeated or blank headers keep their data.
func Reconcile(existing *Table, rec Record) *Table {
	if existing == nil {
		existing = &Table{}
	}
	base := normalizeTable(existing.Columns, existing.Rows)

	columns := make([]string, len(base.Columns), len(base.Columns)+len(rec))
	copy(columns, base.Columns)
	index := make(map[string]int, cap(columns))
	for i, name := range columns {
		index[name] = i
	}
	for _, c := range rec {
		if _, ok := index[c.Name]; ok {
			continue
		}
		index[c.Name] = len(columns)
		columns = append(columns, c.Name)
	}

	out := &Table{Columns: columns, Rows: make([][]string, 0, len(base.Rows)+1)}
	for _, row := range base.Rows {
		projected := make([]string, len(columns))
		copy(projected, row)
		out.Rows = append(out.Rows, projected)
	}

	newRow := make([]string, len(columns))
	for _, c := range rec {
		newRow[index[c.Name]] = c.Value
	}
	out.Rows = append(out.Rows, newRow)

	return out
}

// normalizeTable returns a copy of columns and rows in which the header is
// as wide as the longest row and every header is distinct and non-blank.
// Every row is padded to the header width.
func normalizeTable(columns []string, rows [][]string) *Table {
	width := len(columns)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	header := make([]string, width)
	copy(header, columns)

	t := &Table{Columns: uniqueColumns(header), Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		padded := make([]string, width)
		copy(padded, row)
		t.Rows = append(t.Rows, padded)
	}
	return t
}

// uniqueColumns names blank headers column_<position> and suffixes repeats
// with _2, _3 and so on, never colliding with a header that is already there.
func uniqueColumns(names []string) []string {
	reserved := make(map[string]bool, len(names))
	for _, name := range names {
		if name != "" {
			reserved[name] = true
		}
	}

	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		if name != "" && !used[name] {
			out[i] = name
			used[name] = true
			continue
		}
		base := name
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		candidate := base
		for k := 2; used[candidate] || reserved[candidate]; k++ {
			candidate = fmt.Sprintf("%s_%d", base, k)
		}
		out[i] = candidate
		used[candidate] = true
	}
	return out
}

// RowMap returns row i keyed by column name.
func (t *Table) RowMap(i int) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for j, name := range t.Columns {
		if j < len(t.Rows[i]) {
			m[name] = t.Rows[i][j]
		}
	}
	return m
}
