package chmi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jskoda/precip-dashboard/internal/precip"
)

var (
	trailingNumber = regexp.MustCompile(`[0-9]+$`)
	trailingDate   = regexp.MustCompile(`[0-9]+\.[0-9]+\.[0-9]{4}$`)
)

// parseMeta extracts the total subpage count and the measurement date from
// a precipitation page. The page count is the trailing number of the
// "Celkovy pocet stran" div; the date is the trailing d.m.yyyy of the
// "Datum" table header.
func parseMeta(doc *goquery.Document) (pages int, date time.Time, err error) {
	var pagesText string
	doc.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true // only leaf divs hold the page counter text
		}
		t := strings.TrimSpace(sel.Text())
		if strings.HasPrefix(t, "Celkov") {
			pagesText = t
			return false
		}
		return true
	})
	m := trailingNumber.FindString(pagesText)
	if m == "" {
		return 0, time.Time{}, fmt.Errorf("page count not found on precipitation page")
	}
	pages, err = strconv.Atoi(m)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parsing page count %q: %w", m, err)
	}

	var dateText string
	doc.Find("th").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		t := strings.TrimSpace(sel.Text())
		if strings.HasPrefix(t, "Datum") {
			dateText = t
			return false
		}
		return true
	})
	m = trailingDate.FindString(dateText)
	if m == "" {
		return 0, time.Time{}, fmt.Errorf("measurement date not found on precipitation page")
	}
	date, err = precip.ParseDate(m)
	if err != nil {
		return 0, time.Time{}, err
	}

	return pages, date, nil
}

// parseTable reads the hourly precipitation table of one subpage. The
// header names the station column "Stanice" and the hour columns "1".."24";
// any other columns are ignored. Cells without a numeric value (stations
// with missing measurements) are skipped.
func parseTable(doc *goquery.Document, date time.Time) ([]precip.HourlyReading, error) {
	table := doc.Find("div.tsrz table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("precipitation table not found on page")
	}

	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nil, fmt.Errorf("precipitation table has no data rows")
	}

	// Column layout from the header row.
	stationCol := -1
	hourCols := make(map[int]int, 24) // column index -> hour 1..24
	rows.First().Children().Each(func(i int, cell *goquery.Selection) {
		name := strings.TrimSpace(cell.Text())
		if name == "Stanice" {
			stationCol = i
			return
		}
		if h, err := strconv.Atoi(name); err == nil && h >= 1 && h <= 24 {
			hourCols[i] = h
		}
	})
	if stationCol < 0 {
		return nil, fmt.Errorf("station column not found in table header")
	}
	if len(hourCols) == 0 {
		return nil, fmt.Errorf("no hour columns found in table header")
	}

	var readings []precip.HourlyReading
	var rowErr error
	rows.Slice(1, rows.Length()).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return true // separator or nested header row
		}
		station := strings.TrimSpace(cells.Eq(stationCol).Text())
		if station == "" {
			rowErr = fmt.Errorf("row with empty station name")
			return false
		}

		cells.Each(func(i int, cell *goquery.Selection) {
			hour, ok := hourCols[i]
			if !ok {
				return
			}
			amount, ok := parseAmount(cell.Text())
			if !ok {
				return
			}
			readings = append(readings, precip.HourlyReading{
				Station:    station,
				MeasuredAt: precip.HourTimestamp(date, hour),
				AmountMM:   amount,
			})
		})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return readings, nil
}

// parseAmount parses one table cell. The source uses a decimal comma in
// some renderings and leaves cells empty or dashed when a station did not
// report.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
