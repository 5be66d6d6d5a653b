package ingest

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeColumnName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Opportunity Name", want: "OPPORTUNITY_NAME"},
		{in: "Maximum Amount", want: "AMOUNT"},
		{in: "Maximum Duration", want: "DURATION"},
		{in: "Eligibility Requirements", want: "ELIGIBILITY_REQUIREMENTS"},
		{in: "tags", want: "TAGS"},
		{in: "Career Level", want: "CAREER_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeColumnName(tt.in); got != tt.want {
				t.Errorf("NormalizeColumnName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeColumns_SuffixesDuplicates(t *testing.T) {
	got := NormalizeColumns([]string{"Notes", "notes", "Maximum Amount", "Amount", "NOTES"})
	want := []string{"NOTES", "NOTES.1", "AMOUNT", "AMOUNT.1", "NOTES.2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestStripBOM_Idempotent(t *testing.T) {
	plain := []byte("Sponsor,Tags\nNIH,a\n")
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, plain...)

	if !bytes.Equal(StripBOM(withBOM), plain) {
		t.Fatalf("expected BOM to be stripped")
	}
	if !bytes.Equal(StripBOM(plain), plain) {
		t.Fatalf("expected body without BOM to be unchanged")
	}
	if !bytes.Equal(StripBOM(StripBOM(withBOM)), plain) {
		t.Fatalf("expected stripping twice to be a no-op")
	}

	a, _, errA := ParseDataset(withBOM)
	b, _, errB := ParseDataset(plain)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical tables with and without BOM:\n%+v\n%+v", a, b)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "$1234.5", want: "$1,234"},
		{in: "$1,234.5", want: "$1,234"},
		{in: "$1235.5", want: "$1,236"},
		{in: "$250000", want: "$250,000"},
		{in: "$1,000,000.00", want: "$1,000,000"},
		{in: "$999", want: "$999"},
		{in: "$-1500", want: "$-1,500"},
		{in: "$1e20", want: "$100,000,000,000,000,000,000"},
		{in: "$-1e19", want: "$-10,000,000,000,000,000,000"},
		{in: "1234.5", want: "1234.5"},
		{in: "Varies", want: "Varies"},
		{in: "$TBD", want: "$TBD"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FormatAmount(tt.in); got != tt.want {
				t.Errorf("FormatAmount(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDeadline(t *testing.T) {
	for _, in := range []string{"", "   ", "13/45/2024", "2025-01-15", "rolling", "1/15/25"} {
		if got := ParseDeadline(in); got != nil {
			t.Errorf("ParseDeadline(%q) = %v, want nil", in, got)
		}
	}

	want := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"01/15/2025", "1/15/2025", " 01/15/2025 "} {
		got := ParseDeadline(in)
		if got == nil {
			t.Fatalf("ParseDeadline(%q) returned nil", in)
		}
		if !got.Equal(want) {
			t.Errorf("ParseDeadline(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestTagVocabulary(t *testing.T) {
	rows := []Row{
		{Tags: SplitTags("a,b")},
		{Tags: SplitTags("b,c")},
		{Tags: SplitTags("")},
		{},
		{Tags: SplitTags(" c , ,a")},
	}

	got := TagVocabulary(rows)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseDataset_NormalizesRows(t *testing.T) {
	body := []byte("\xEF\xBB\xBFSponsor,Opportunity Name,Tags,Maximum Amount,Deadline,Deadline Type\n" +
		"NIH,R01,\"health,research\",$250000,01/15/2025,Full proposal\n" +
		"NSF,CAREER,,$1234.5,13/45/2024,\n" +
		"Foundation X,Seed\n")

	table, tags, err := ParseDataset(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantColumns := []string{"SPONSOR", "OPPORTUNITY_NAME", "TAGS", "AMOUNT", "DEADLINE", "DEADLINE_TYPE"}
	if !reflect.DeepEqual(table.Columns, wantColumns) {
		t.Fatalf("expected columns %v, got %v", wantColumns, table.Columns)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}

	first := table.Rows[0]
	if first.Get(ColumnAmount) != "$250,000" {
		t.Errorf("expected formatted amount, got %q", first.Get(ColumnAmount))
	}
	if first.Deadline == nil || first.Get(ColumnDeadline) != "01/15/2025" {
		t.Errorf("expected parsed deadline, got %v / %q", first.Deadline, first.Get(ColumnDeadline))
	}
	if !reflect.DeepEqual(first.Tags, []string{"health", "research"}) {
		t.Errorf("unexpected tags %v", first.Tags)
	}

	second := table.Rows[1]
	if !second.IsRolling() || second.Has(ColumnDeadline) {
		t.Errorf("expected unparseable deadline to be rolling and absent")
	}
	if second.Has(ColumnTags) || second.Tags != nil {
		t.Errorf("expected empty tags to be absent, got %v", second.Tags)
	}
	if second.Has(ColumnDeadlineType) {
		t.Errorf("expected empty cell to be absent")
	}

	third := table.Rows[2]
	if third.Get(ColumnOpportunityName) != "Seed" || third.Has(ColumnAmount) || !third.IsRolling() {
		t.Errorf("expected short row to be padded with absent values, got %+v", third.Values)
	}

	if !reflect.DeepEqual(tags, []string{"health", "research"}) {
		t.Errorf("unexpected vocabulary %v", tags)
	}
}

func TestParseDataset_HeaderOnly(t *testing.T) {
	table, tags, err := ParseDataset([]byte("Sponsor,Tags\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 0 || len(tags) != 0 {
		t.Fatalf("expected empty table, got %d rows and %d tags", len(table.Rows), len(tags))
	}
	if !reflect.DeepEqual(table.Columns, []string{"SPONSOR", "TAGS"}) {
		t.Fatalf("unexpected columns %v", table.Columns)
	}
}

func TestParseDataset_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty body", body: nil},
		{name: "BOM only", body: []byte{0xEF, 0xBB, 0xBF}},
		{name: "whitespace only", body: []byte("  \n\n")},
		{name: "invalid utf-8", body: []byte("Sponsor\n\xff\xfe\n")},
		{name: "row wider than header", body: []byte("Sponsor,Tags\nNIH,a,extra\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseDataset(tt.body)
			if !errors.Is(err, ErrMalformedDataset) {
				t.Fatalf("expected ErrMalformedDataset, got %v", err)
			}
		})
	}
}
