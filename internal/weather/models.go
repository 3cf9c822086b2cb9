package weather

import "strconv"

// CacheKey is the file store key of the weather snapshot.
const CacheKey = "weather"

// Location is the point the weather is polled for.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Query formats the coordinates the way upstream query strings expect.
func (l Location) Query() (lat, lon string) {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64), strconv.FormatFloat(l.Lon, 'f', -1, 64)
}

// Snapshot is the latest persisted weather. Every field is nil until the
// first successful poll.
type Snapshot struct {
	DescriptionLocalized *string  `json:"description_localized"`
	DescriptionEN        *string  `json:"description_en"`
	Temperature          *float64 `json:"temperature"`
}
