package precip

import (
	"testing"

	"github.com/matryer/is"
)

func TestSortCzech(t *testing.T) {
	is := is.New(t)

	// "ch" is a separate letter sorting after "h" in Czech; accented
	// letters must not end up after "z" as in byte order.
	names := []string{"Cheb", "Hodonín", "Aš", "Česká Lípa", "Brno"}
	SortCzech(names)
	is.Equal(names, []string{"Aš", "Brno", "Česká Lípa", "Hodonín", "Cheb"})
}

func TestSortStations(t *testing.T) {
	is := is.New(t)

	stations := []Station{{Name: "Cheb"}, {Name: "Hodonín"}}
	SortStations(stations)
	is.Equal(stations[0].Name, "Hodonín")
	is.Equal(stations[1].Name, "Cheb")
}
