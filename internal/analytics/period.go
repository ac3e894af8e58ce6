package analytics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"precatorios/internal/core"
)

var (
	monthlyKey = regexp.MustCompile(`^(\d{2})/(\d{2})$`)
	annualKey  = regexp.MustCompile(`^\d{4}$`)
)

// PeriodKey returns "MM/YY" for monthly grain and "YYYY" for annual.
func PeriodKey(d core.Date, g Grain) string {
	if g == Annual {
		return fmt.Sprintf("%04d", d.Year())
	}
	return fmt.Sprintf("%02d/%02d", d.Month(), d.Year()%100)
}

// ComparePeriods orders monthly keys chronologically and annual keys
// numerically. Anything else compares as plain strings.
func ComparePeriods(a, b string) int {
	if ai, ok := monthIndex(a); ok {
		if bi, ok := monthIndex(b); ok {
			return compareInts(ai, bi)
		}
	}
	if annualKey.MatchString(a) && annualKey.MatchString(b) {
		ai, _ := strconv.Atoi(a)
		bi, _ := strconv.Atoi(b)
		return compareInts(ai, bi)
	}
	return strings.Compare(a, b)
}

// SortPeriods sorts keys in place with ComparePeriods.
func SortPeriods(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		return ComparePeriods(keys[i], keys[j]) < 0
	})
}

func monthIndex(key string) (int, bool) {
	m := monthlyKey.FindStringSubmatch(key)
	if m == nil {
		return 0, false
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	return year*12 + month, true
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
