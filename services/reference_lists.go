package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

const (
	idcColumn     = "COMPANY_NAME"
	stationColumn = "Station Tag"
)

// ReferenceLists holds the option lists read from the reference workbooks.
type ReferenceLists struct {
	IDCs     []string `json:"idcs"`
	Stations []string `json:"stations"`
}

var (
	referenceMu    sync.Mutex
	referenceCache = map[string][]string{}
)

// LoadReferenceLists reads the station list and, when idcFile is set, the IDC
// list. A missing file or column is returned as an error; callers treat it
// as fatal at startup.
func LoadReferenceLists(idcFile, stationsFile string) (*ReferenceLists, error) {
	lists := &ReferenceLists{IDCs: []string{}}
	if idcFile != "" {
		idcs, err := loadColumnCached(idcFile, idcColumn, "IDC file")
		if err != nil {
			return nil, err
		}
		lists.IDCs = idcs
	}
	stations, err := loadColumnCached(stationsFile, stationColumn, "Stations file")
	if err != nil {
		return nil, err
	}
	lists.Stations = stations
	return lists, nil
}

func loadColumnCached(path, column, label string) ([]string, error) {
	key := path + "\x00" + column

	referenceMu.Lock()
	defer referenceMu.Unlock()
	if cached, ok := referenceCache[key]; ok {
		return cached, nil
	}

	values, err := LoadColumn(path, column)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", label, path, err)
	}
	referenceCache[key] = values
	return values, nil
}

// LoadColumn returns the distinct non-blank values of a named header column
// in the first sheet of an xlsx file, trimmed and sorted.
func LoadColumn(path, column string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}

	col := -1
	if len(rows) > 0 {
		for i, name := range rows[0] {
			if strings.TrimSpace(name) == column {
				col = i
				break
			}
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("must contain a %q column", column)
	}

	seen := make(map[string]struct{})
	values := make([]string, 0, len(rows))
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}
