package precip

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

const stationsCSV = `js,precip_known,final,FNAME,ELEVATION,Y,X,ID,STATION_TYP
Brno,Brno,Brno,Brno,241.0,49.19,16.61,B2BRNO01,AKS
As,Aš,Aš,As,666.0,50.22,12.19,L1ASXX01,MAN
`

func TestReadStationsCSV(t *testing.T) {
	is := is.New(t)

	stations, err := ReadStationsCSV(strings.NewReader(stationsCSV))
	is.NoErr(err)
	is.Equal(len(stations), 2)

	is.Equal(stations[0].Name, "Brno")
	is.Equal(stations[0].Elevation, 241.0)
	is.Equal(stations[0].Lat, 49.19)
	is.Equal(stations[0].Lon, 16.61)
	is.Equal(stations[0].ChmiID, "B2BRNO01")
	is.Equal(stations[0].Type, "AKS")

	is.Equal(stations[1].Name, "Aš")
}

func TestReadStationsCSVMissingColumn(t *testing.T) {
	is := is.New(t)

	_, err := ReadStationsCSV(strings.NewReader("precip_known,ELEVATION\nBrno,241\n"))
	is.True(err != nil)
}
