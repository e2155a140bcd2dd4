package directory

import "scanbridge/internal/records"

// FallbackLocations is served when no cached data exists and the backend
// cannot be reached, so the scanning workflow always has something to show.
func FallbackLocations() []Location {
	return []Location{
		{
			ID:   "1",
			Name: "Warehouse A (Fallback)",
			Sublocations: []records.Sublocation{
				{ID: "sub1", Name: "Section A1"},
				{ID: "sub2", Name: "Section A2"},
			},
		},
		{
			ID:   "2",
			Name: "Laboratory (Fallback)",
			Sublocations: []records.Sublocation{
				{ID: "sub3", Name: "Lab Storage"},
			},
		},
	}
}
