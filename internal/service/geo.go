package service

import (
	"math"
	"sort"

	"pravha/api/internal/model"
)

// haversineDistance calculates the great circle distance between two points in kilometers
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth's radius in kilometers

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// nearestShelters ranks candidates by distance from the query point and keeps
// the k closest. Shelters that cannot take people (FULL, MAINTENANCE) are
// excluded, unless that would empty the result entirely, in which case every
// candidate is returned annotated with its status rather than silently
// dropping everything. A positive radiusKm filters before ranking.
func nearestShelters(candidates []model.ShelterInfo, loc model.Location, k int, radiusKm float64) []model.ShelterDistance {
	all := make([]model.ShelterDistance, 0, len(candidates))
	for _, s := range candidates {
		d := haversineDistance(loc.Lat, loc.Lon, s.Lat, s.Lon)
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		all = append(all, model.ShelterDistance{ShelterInfo: s, DistanceKm: d})
	}

	usable := all[:0:0]
	for _, sd := range all {
		if sd.Status != model.ShelterStatusFull && sd.Status != model.ShelterStatusMaintenance {
			usable = append(usable, sd)
		}
	}
	if len(usable) == 0 {
		usable = all
	}

	sort.Slice(usable, func(i, j int) bool {
		if usable[i].DistanceKm != usable[j].DistanceKm {
			return usable[i].DistanceKm < usable[j].DistanceKm
		}
		return usable[i].ID < usable[j].ID // deterministic tie-break
	})

	if k > 0 && len(usable) > k {
		usable = usable[:k]
	}
	return usable
}
