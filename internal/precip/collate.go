package precip

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Station names are Czech; plain byte ordering misplaces accented letters
// and the digraph "ch", so all user-facing lists sort by Czech collation.
var (
	czechMu sync.Mutex
	czech   = collate.New(language.Czech)
)

// CompareCzech compares two strings according to Czech collation rules.
func CompareCzech(a, b string) int {
	czechMu.Lock()
	defer czechMu.Unlock()
	return czech.CompareString(a, b)
}

// SortStations orders stations by name using Czech collation.
func SortStations(stations []Station) {
	sort.Slice(stations, func(i, j int) bool {
		return CompareCzech(stations[i].Name, stations[j].Name) < 0
	})
}

// SortCzech orders a string slice using Czech collation.
func SortCzech(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return CompareCzech(names[i], names[j]) < 0
	})
}
