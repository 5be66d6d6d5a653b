package ingest

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatAmount rewrites a dollar amount such as "$1234.5" as "$1,234":
// thousands-grouped, no decimals, ties rounded to even. Values without a
// leading "$", or that do not parse as a number, are returned unchanged.
func FormatAmount(value string) string {
	if !strings.HasPrefix(value, "$") {
		return value
	}

	clean := strings.ReplaceAll(value, "$", "")
	clean = strings.ReplaceAll(clean, ",", "")
	amount, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return value
	}

	rounded := math.RoundToEven(amount)
	if math.Abs(rounded) >= math.MaxInt64 {
		whole, _ := new(big.Float).SetFloat64(rounded).Int(nil)
		return "$" + humanize.BigComma(whole)
	}
	return "$" + humanize.Comma(int64(rounded))
}
