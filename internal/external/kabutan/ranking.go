package kabutan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/pkg/logger"
)

const (
	// rankingTableSelector matches the ranking table on every warning page
	rankingTableSelector = "table.stock_kabuka0"

	// maxRecords caps one scrape to the top rows of the ranking
	maxRecords = 10

	// rowExcerptLimit bounds the raw row text attached to panic logs
	rowExcerptLimit = 150
)

var (
	// stockCodeRe: Japanese stock codes are exactly 4 ASCII digits
	stockCodeRe = regexp.MustCompile(`^[0-9]{4}$`)

	// changeNumberRe extracts the first signed decimal from a cleaned cell,
	// tolerating full-width and true minus signs
	changeNumberRe = regexp.MustCompile(`[-−－]?\d*\.?\d+`)
)

// percentStripper removes percent signs and explicit plus signs before
// numeric extraction
var percentStripper = strings.NewReplacer("％", "", "%", "", "+", "", "＋", "")

// minusNormalizer folds U+2212 (minus sign) and U+FF0D (full-width hyphen)
// into ASCII '-'
var minusNormalizer = strings.NewReplacer("−", "-", "－", "-")

// stopLimitMarkers are the stop-high / stop-low flags kabutan renders in
// trailing cells
var stopLimitMarkers = []string{"S高", "S安", "Ｓ高", "Ｓ安"}

type skipLevel int

const (
	skipDebug skipLevel = iota // routine structural rows (headers, spacers)
	skipWarn                   // rows that look like data but fail validation
)

// rowResult is the outcome of extracting a single table row: either a
// record, or a skip with a reason and a severity
type rowResult struct {
	record *contracts.StockRecord
	reason string
	level  skipLevel
}

func okRow(rec contracts.StockRecord) rowResult {
	return rowResult{record: &rec}
}

func skipRow(level skipLevel, reason string) rowResult {
	return rowResult{reason: reason, level: level}
}

// parseRankingTable locates the ranking table and extracts up to
// maxRecords stock records. Ranks are assigned by extraction order, so a
// skipped row never leaves a gap.
func parseRankingTable(doc *goquery.Document, sourceURL string, log *logger.Logger) []contracts.StockRecord {
	table := doc.Find(rankingTableSelector).First()
	if table.Length() == 0 {
		log.WithField("url", sourceURL).Warn("Ranking table not found on page")
		return nil
	}

	rows := table.Find("tr")
	if rows.Length() <= 1 {
		log.WithField("url", sourceURL).Warn("Ranking table contains no data rows")
		return nil
	}

	records := make([]contracts.StockRecord, 0, maxRecords)
	processed := 0

	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			// header row
			return true
		}

		processed++
		res := extractRow(row, sourceURL, len(records)+1)
		if res.record != nil {
			records = append(records, *res.record)
			return len(records) < maxRecords
		}

		entry := log.WithFields(map[string]interface{}{
			"url":    sourceURL,
			"row":    i,
			"reason": res.reason,
		})
		if res.level == skipWarn {
			entry.Warn("Skipped ranking row")
		} else {
			entry.Debug("Skipped ranking row")
		}
		return true
	})

	if len(records) == 0 {
		log.WithFields(map[string]interface{}{
			"url":           sourceURL,
			"rows_examined": processed,
		}).Warn("Ranking table yielded no valid records")
	}

	return records
}

// extractRow converts one <tr> into a stock record. A panic while
// handling a malformed row is recovered and reported as a skip with a
// bounded excerpt of the raw row text.
func extractRow(row *goquery.Selection, sourceURL string, rank int) (res rowResult) {
	defer func() {
		if r := recover(); r != nil {
			res = skipRow(skipWarn, "row extraction panicked: "+rowExcerpt(row))
		}
	}()

	cells := row.Find("td")
	if cells.Length() < 4 {
		return skipRow(skipDebug, "fewer than 4 cells")
	}

	code := linkOrText(cells.Eq(0))
	if !stockCodeRe.MatchString(code) {
		return skipRow(skipWarn, "invalid stock code "+strconv.Quote(code))
	}

	name := linkOrText(cells.Eq(1))
	if name == "" {
		return skipRow(skipWarn, "empty stock name for code "+code)
	}

	changeIdx := locateChangeColumn(cells)
	if changeIdx < 0 {
		return skipRow(skipWarn, "change percent column not found for code "+code)
	}

	change, ok := parseChangePercent(cells.Eq(changeIdx).Text())
	if !ok {
		return skipRow(skipWarn, "unparseable change percent for code "+code)
	}

	return okRow(contracts.StockRecord{
		Rank:          rank,
		Code:          code,
		Name:          name,
		ChangePercent: change,
		IsStopLimit:   hasStopLimitMarker(cells),
		CurrentPrice:  parsePrice(cells.Eq(3).Text()),
		SourceURL:     sourceURL,
	})
}

// locateChangeColumn finds the cell holding the change percentage.
// Scans from the right down to the first cell after the price column;
// a class hint ("change" / "rate") wins over a bare percent sign, and
// the right-most qualifying cell wins overall.
func locateChangeColumn(cells *goquery.Selection) int {
	for i := cells.Length() - 1; i > 2; i-- {
		cell := cells.Eq(i)
		if class, ok := cell.Attr("class"); ok {
			if strings.Contains(class, "change") || strings.Contains(class, "rate") {
				return i
			}
		}
		if strings.ContainsAny(cell.Text(), "％%") {
			return i
		}
	}
	return -1
}

// parseChangePercent extracts a signed decimal from a raw cell text like
// "+5.23％" or "－3.10%". Returns false when no number is present.
func parseChangePercent(raw string) (float64, bool) {
	s := percentStripper.Replace(strings.TrimSpace(raw))

	m := changeNumberRe.FindString(s)
	if m == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(minusNormalizer.Replace(m), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parsePrice parses the current price cell. "--" and empty cells are
// placeholders kabutan shows outside trading hours; they yield nil.
func parsePrice(raw string) *float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" || s == "--" {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// hasStopLimitMarker scans the cells after the name/code block for an
// S高 / S安 flag
func hasStopLimitMarker(cells *goquery.Selection) bool {
	found := false
	cells.Each(func(i int, cell *goquery.Selection) {
		if found || i < 3 {
			return
		}
		text := cell.Text()
		for _, marker := range stopLimitMarkers {
			if strings.Contains(text, marker) {
				found = true
				return
			}
		}
	})
	return found
}

// linkOrText prefers the anchor text of a cell, falling back to the raw
// cell text
func linkOrText(cell *goquery.Selection) string {
	if a := cell.Find("a").First(); a.Length() > 0 {
		return strings.TrimSpace(a.Text())
	}
	return strings.TrimSpace(cell.Text())
}

// rowExcerpt returns the row's text bounded to rowExcerptLimit runes
func rowExcerpt(row *goquery.Selection) string {
	text := strings.Join(strings.Fields(row.Text()), " ")
	runes := []rune(text)
	if len(runes) > rowExcerptLimit {
		return string(runes[:rowExcerptLimit]) + "..."
	}
	return text
}
