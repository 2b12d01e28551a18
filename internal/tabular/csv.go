package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// ReadCSV loads a CSV file into a Table. The first record is the header row;
// fully empty data rows are dropped, matching how sheet exports behave.
func ReadCSV(path, name string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s table: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s table: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table %q is empty (no header row)", name)
	}

	t := &Table{Name: name}
	for _, h := range records[0] {
		t.Columns = append(t.Columns, strings.TrimSpace(h))
	}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(t.Columns))
		empty := true
		for i, c := range t.Columns {
			if i >= len(rec) {
				break
			}
			v := strings.TrimSpace(rec[i])
			row[c] = v
			if v != "" {
				empty = false
			}
		}
		if !empty {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

// WriteCSV writes the table to path using its current column order.
func (t *Table) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s output: %w", t.Name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("writing %s header: %w", t.Name, err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			rec[i] = row[c]
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("writing %s row: %w", t.Name, err)
		}
	}
	w.Flush()
	return w.Error()
}
