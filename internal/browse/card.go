package browse

import (
	"html"
	"strings"

	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/microcosm-cc/bluemonday"
)

// reservedColumns are rendered in dedicated card slots, or not at all, and
// are skipped when listing extra fields.
var reservedColumns = map[string]bool{
	"ID_NUMBER":                          true,
	ingest.ColumnSponsor:                 true,
	ingest.ColumnOpportunityName:         true,
	ingest.ColumnURL:                     true,
	ingest.ColumnTags:                    true,
	ingest.ColumnDescription:             true,
	"DEADLINE_STATUS":                    true,
	ingest.ColumnDeadline:                true,
	ingest.ColumnAmount:                  true,
	ingest.ColumnDeadlineType:            true,
	"CAREER_LEVEL":                       true,
	ingest.ColumnDuration:                true,
	ingest.ColumnEligibilityRequirements: true,
	"LIMITED_SUBMISSION":                 true,
}

var cardPolicy = bluemonday.UGCPolicy()

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DetailCard is the per-row detail view.
type DetailCard struct {
	Title       string  `json:"title,omitempty"`
	URL         string  `json:"url,omitempty"`
	Amount      string  `json:"amount,omitempty"`
	Deadline    string  `json:"deadline"`
	Eligibility string  `json:"eligibility_requirements,omitempty"`
	Extra       []Field `json:"extra"`
	Description string  `json:"description,omitempty"`
}

// NewCard builds the detail card for row. columns fixes the order of the
// extra fields.
func NewCard(columns []string, row ingest.Row) DetailCard {
	card := DetailCard{
		Amount:      row.Get(ingest.ColumnAmount),
		Eligibility: row.Get(ingest.ColumnEligibilityRequirements),
		Description: row.Get(ingest.ColumnDescription),
		Extra:       []Field{},
	}

	sponsor := row.Get(ingest.ColumnSponsor)
	name := row.Get(ingest.ColumnOpportunityName)
	card.Title = strings.TrimSpace(sponsor + " " + name)
	if card.Title != "" {
		card.URL = row.Get(ingest.ColumnURL)
	}

	card.Deadline = "Rolling"
	if row.Deadline != nil {
		due := ingest.FormatDeadline(*row.Deadline)
		if kind := row.Get(ingest.ColumnDeadlineType); kind != "" {
			card.Deadline = kind + " due " + due
		} else {
			card.Deadline = "Due " + due
		}
	}

	for _, col := range columns {
		if reservedColumns[col] {
			continue
		}
		if v, ok := row.Values[col]; ok {
			card.Extra = append(card.Extra, Field{Name: col, Value: v})
		}
	}

	return card
}

// RenderHTML renders card as an HTML fragment. Cell values may carry markup
// from the source; the result is passed through a UGC sanitizer.
func RenderHTML(card DetailCard) string {
	var b strings.Builder
	b.WriteString(`<div class="opportunity">`)

	if card.Title != "" {
		b.WriteString("<p>")
		if card.URL != "" {
			b.WriteString(`<a href="` + html.EscapeString(card.URL) + `"><b>` + card.Title + "</b></a>")
		} else {
			b.WriteString("<b>" + card.Title + "</b>")
		}
		b.WriteString("</p>")
	}

	writeField(&b, "AMOUNT", card.Amount)
	writeField(&b, "DEADLINE", card.Deadline)
	writeField(&b, "ELIGIBILITY REQUIREMENTS", card.Eligibility)
	for _, f := range card.Extra {
		writeField(&b, f.Name, f.Value)
	}
	writeField(&b, "DESCRIPTION", card.Description)

	b.WriteString("</div>")
	return cardPolicy.Sanitize(b.String())
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString("<p><b>" + html.EscapeString(label) + ":</b> " + value + "</p>")
}
