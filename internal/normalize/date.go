package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numericDate = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})\b`)
	namedDate   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?[\s\-]+([a-z]{3,9})\.?,?[\s\-]+(\d{4}|\d{2})\b`)
)

var months = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// DateTokenPattern matches the date forms NormalizeDate understands. It is
// exported so text scanners can locate a date before normalizing it.
const DateTokenPattern = `\d{1,2}[-/.]\d{1,2}[-/.](?:\d{4}|\d{2})|\d{1,2}(?:st|nd|rd|th)?[\s\-]+[A-Za-z]{3,9}\.?,?[\s\-]+(?:\d{4}|\d{2})`

// NormalizeDate finds the first D-M-Y, D/M/Y or "D Mon Y" date in s and
// renders it as DD/MM/YYYY. Two-digit years are prefixed with "20".
func NormalizeDate(s string) (string, bool) {
	for _, m := range numericDate.FindAllStringSubmatch(s, -1) {
		month, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if out, ok := formatDate(m[1], time.Month(month), m[3]); ok {
			return out, true
		}
	}
	for _, m := range namedDate.FindAllStringSubmatch(s, -1) {
		month, ok := months[strings.ToLower(m[2])[:3]]
		if !ok {
			continue
		}
		if out, ok := formatDate(m[1], month, m[3]); ok {
			return out, true
		}
	}
	return "", false
}

// FormatDate renders t in the canonical DD/MM/YYYY form.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

func formatDate(dayText string, month time.Month, yearText string) (string, bool) {
	day, err := strconv.Atoi(dayText)
	if err != nil {
		return "", false
	}
	if len(yearText) == 2 {
		yearText = "20" + yearText
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return "", false
	}
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return "", false
	}
	return fmt.Sprintf("%02d/%02d/%04d", day, int(month), year), true
}
