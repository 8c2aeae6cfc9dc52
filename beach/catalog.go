// Package beach holds the fixed catalog of cleanup sites and the selected
// beach preference.
package beach

import (
	"math"

	"github.com/shorecrew/shorecrew/types"
)

// Catalog is the fixed set of beaches cleanups are organized around.
var Catalog = []types.Beach{
	{
		Slug:        "north-cove",
		Name:        "North Cove",
		Latitude:    36.9741,
		Longitude:   -122.0308,
		Description: "Sheltered cove north of the harbor, heavy kelp wrack after storms.",
	},
	{
		Slug:        "driftwood-flats",
		Name:        "Driftwood Flats",
		Latitude:    36.9515,
		Longitude:   -122.0564,
		Description: "Long sandy stretch, popular on weekends, most litter near the parking lot.",
	},
	{
		Slug:        "pelican-point",
		Name:        "Pelican Point",
		Latitude:    36.9923,
		Longitude:   -121.9876,
		Description: "Rocky point with tide pools, fishing line and net fragments common.",
	},
	{
		Slug:        "sandpiper-strand",
		Name:        "Sandpiper Strand",
		Latitude:    36.9102,
		Longitude:   -122.1089,
		Description: "Dune-backed strand, nesting area, cleanups stay below the high-tide line.",
	},
	{
		Slug:        "harbor-mouth",
		Name:        "Harbor Mouth",
		Latitude:    36.9608,
		Longitude:   -122.0017,
		Description: "River mouth by the jetty, collects upstream debris after rain.",
	},
}

// Slugs returns the catalog slugs in catalog order.
func Slugs() []string {
	slugs := make([]string, 0, len(Catalog))
	for _, b := range Catalog {
		slugs = append(slugs, b.Slug)
	}
	return slugs
}

// BySlug looks a beach up by its slug.
func BySlug(slug string) (types.Beach, bool) {
	for _, b := range Catalog {
		if b.Slug == slug {
			return b, true
		}
	}
	return types.Beach{}, false
}

// Nearest returns the catalog beach closest to the given coordinates and the
// distance to it in kilometers.
func Nearest(lat, lon float64) (types.Beach, float64) {
	best := Catalog[0]
	bestDist := haversineKm(lat, lon, best.Latitude, best.Longitude)

	for _, b := range Catalog[1:] {
		if d := haversineKm(lat, lon, b.Latitude, b.Longitude); d < bestDist {
			best = b
			bestDist = d
		}
	}
	return best, bestDist
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
