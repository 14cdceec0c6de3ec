// Package dataset loads the labeled audio index and turns corpus
// files into normalized feature tensors for training and prediction.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var titleCaser = cases.Title(language.English)

// Entry is one labeled audio file in the class table
type Entry struct {
	FName string `csv:"fname"`
	Label string `csv:"label"`
}

// PredictionRow is one line of the predictions export
type PredictionRow struct {
	FName     string  `csv:"fname"`
	Label     string  `csv:"label"`
	Score     float64 `csv:"score"`
	Probs     string  `csv:"y_probs"`
	Predicted string  `csv:"y_pred"`
}

// FormatProbs renders an averaged probability vector for the y_probs
// column
func FormatProbs(probs []float64) string {
	parts := make([]string, len(probs))
	for i, p := range probs {
		parts[i] = strconv.FormatFloat(p, 'f', 6, 64)
	}
	return strings.Join(parts, " ")
}

// ClassTable indexes labeled audio files by class. The class list is
// the sorted set of distinct labels; per-class file order follows the
// table order, which fixed-mode sampling depends on.
type ClassTable struct {
	entries    []Entry
	classNames []string
	byClass    map[string][]string
}

// LoadTable reads a class table from a CSV file with fname and label
// columns
func LoadTable(path string) (*ClassTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class table: %w", err)
	}
	defer file.Close()

	var rows []*Entry
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse class table: %w", err)
	}

	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = *row
	}
	return NewTable(entries)
}

// NewTable builds a class table from in-memory entries. Names and
// labels are NFC normalized so corpus files written on other platforms
// still match.
func NewTable(entries []Entry) (*ClassTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("class table is empty")
	}

	t := &ClassTable{byClass: make(map[string][]string)}
	for _, e := range entries {
		e.FName = norm.NFC.String(strings.TrimSpace(e.FName))
		e.Label = norm.NFC.String(strings.TrimSpace(e.Label))
		if e.FName == "" || e.Label == "" {
			return nil, fmt.Errorf("class table row missing fname or label")
		}

		t.entries = append(t.entries, e)
		if _, known := t.byClass[e.Label]; !known {
			t.classNames = append(t.classNames, e.Label)
		}
		t.byClass[e.Label] = append(t.byClass[e.Label], e.FName)
	}
	sort.Strings(t.classNames)
	return t, nil
}

// Classes returns the sorted distinct class labels
func (t *ClassTable) Classes() []string {
	return t.classNames
}

// Files returns the file names of a class in table order
func (t *ClassTable) Files(label string) []string {
	return t.byClass[label]
}

// ClassIndex returns the position of a label in the sorted class
// list, or -1 when the label is unknown
func (t *ClassTable) ClassIndex(label string) int {
	for i, name := range t.classNames {
		if name == label {
			return i
		}
	}
	return -1
}

// SmallestClassSize returns the minimum file count across classes
func (t *ClassTable) SmallestClassSize() int {
	smallest := -1
	for _, name := range t.classNames {
		if n := len(t.byClass[name]); smallest == -1 || n < smallest {
			smallest = n
		}
	}
	if smallest == -1 {
		return 0
	}
	return smallest
}

// Len returns the number of entries in the table
func (t *ClassTable) Len() int {
	return len(t.entries)
}

// Entries returns the table rows in load order
func (t *ClassTable) Entries() []Entry {
	return t.entries
}

// DisplayName renders a class label for human output
func (t *ClassTable) DisplayName(label string) string {
	return titleCaser.String(label)
}

// WriteCopy writes an audit copy of the table next to the run
// artifacts
func (t *ClassTable) WriteCopy(path string) error {
	return WriteEntries(path, t.entries)
}

// WritePredictions writes the semicolon-delimited predictions export
func WritePredictions(path string, rows []PredictionRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create predictions file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = ';'
	out := make([]*PredictionRow, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	if err := gocsv.MarshalCSV(&out, gocsv.NewSafeCSVWriter(writer)); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	return nil
}
