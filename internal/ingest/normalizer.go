package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// columnRenames maps normalized source headers onto the canonical table names.
var columnRenames = map[string]string{
	"MAXIMUM_AMOUNT":   ColumnAmount,
	"MAXIMUM_DURATION": ColumnDuration,
}

// StripBOM removes a leading UTF-8 byte-order mark, if any.
func StripBOM(body []byte) []byte {
	return bytes.TrimPrefix(body, utf8BOM)
}

// NormalizeColumnName uppercases name, replaces spaces with underscores and
// applies the canonical renames.
func NormalizeColumnName(name string) string {
	normalized := strings.ReplaceAll(strings.ToUpper(name), " ", "_")
	if renamed, ok := columnRenames[normalized]; ok {
		return renamed
	}
	return normalized
}

// NormalizeColumns normalizes a header row. Repeated names get ".1", ".2", ...
// suffixes so every column stays addressable.
func NormalizeColumns(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeColumnName(h)
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}

// ParseDataset decodes an export body into the normalized table and its tag
// vocabulary. Any error wraps ErrMalformedDataset. A header-only body yields
// an empty table; an empty body is an error.
func ParseDataset(body []byte) (Table, []string, error) {
	body = StripBOM(body)
	if !utf8.Valid(body) {
		return Table{}, nil, fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedDataset)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Table{}, nil, fmt.Errorf("%w: empty body", ErrMalformedDataset)
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return Table{}, nil, fmt.Errorf("%w: failed to read header: %w", ErrMalformedDataset, err)
	}

	table := Table{Columns: NormalizeColumns(header)}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, nil, fmt.Errorf("%w: %w", ErrMalformedDataset, err)
		}
		if len(record) > len(table.Columns) {
			line, _ := r.FieldPos(0)
			return Table{}, nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrMalformedDataset, line, len(record), len(table.Columns))
		}
		table.Rows = append(table.Rows, normalizeRow(table.Columns, record))
	}

	return table, TagVocabulary(table.Rows), nil
}

// normalizeRow builds a Row from one CSV record. Empty and missing trailing
// cells are absent. DEADLINE is rewritten to MM/DD/YYYY when it parses and
// dropped when it does not.
func normalizeRow(columns []string, record []string) Row {
	row := Row{Values: make(map[string]string, len(columns))}
	for i, col := range columns {
		if i >= len(record) || record[i] == "" {
			continue
		}
		row.Values[col] = record[i]
	}

	if v, ok := row.Values[ColumnAmount]; ok {
		row.Values[ColumnAmount] = FormatAmount(v)
	}

	if v, ok := row.Values[ColumnDeadline]; ok {
		row.Deadline = ParseDeadline(v)
		if row.Deadline != nil {
			row.Values[ColumnDeadline] = FormatDeadline(*row.Deadline)
		} else {
			delete(row.Values, ColumnDeadline)
		}
	}

	row.Tags = SplitTags(row.Values[ColumnTags])
	return row
}

// SplitTags splits a comma-joined tag cell into trimmed, non-empty tokens.
func SplitTags(value string) []string {
	if value == "" {
		return nil
	}
	var tags []string
	for _, tok := range strings.Split(value, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tags = append(tags, tok)
		}
	}
	return tags
}

// TagVocabulary returns every distinct tag across rows, sorted.
func TagVocabulary(rows []Row) []string {
	seen := make(map[string]struct{})
	var vocab []string
	for _, row := range rows {
		for _, tag := range row.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			vocab = append(vocab, tag)
		}
	}
	sort.Strings(vocab)
	return vocab
}
