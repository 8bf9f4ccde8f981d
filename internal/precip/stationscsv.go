package precip

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Column names in the stations metadata CSV produced by the backfill
// tooling. "precip_known" is the station name as it appears in the
// precipitation tables; the geographic columns keep their source names.
var stationCSVColumns = map[string]string{
	"name":      "precip_known",
	"elevation": "ELEVATION",
	"lat":       "Y",
	"lon":       "X",
	"chmi_id":   "ID",
	"type":      "STATION_TYP",
}

// ReadStationsCSV parses station metadata from the stations CSV file.
func ReadStationsCSV(r io.Reader) ([]Station, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading stations csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for field, col := range stationCSVColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("stations csv is missing column %q (%s)", col, field)
		}
	}

	var stations []Station
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading stations csv line %d: %w", line, err)
		}

		st := Station{
			Name:   rec[idx[stationCSVColumns["name"]]],
			ChmiID: rec[idx[stationCSVColumns["chmi_id"]]],
			Type:   rec[idx[stationCSVColumns["type"]]],
		}
		if st.Name == "" {
			return nil, fmt.Errorf("stations csv line %d: empty station name", line)
		}
		st.Elevation, err = strconv.ParseFloat(rec[idx[stationCSVColumns["elevation"]]], 64)
		if err != nil {
			return nil, fmt.Errorf("stations csv line %d: elevation: %w", line, err)
		}
		st.Lat, err = strconv.ParseFloat(rec[idx[stationCSVColumns["lat"]]], 64)
		if err != nil {
			return nil, fmt.Errorf("stations csv line %d: lat: %w", line, err)
		}
		st.Lon, err = strconv.ParseFloat(rec[idx[stationCSVColumns["lon"]]], 64)
		if err != nil {
			return nil, fmt.Errorf("stations csv line %d: lon: %w", line, err)
		}

		stations = append(stations, st)
	}

	return stations, nil
}
