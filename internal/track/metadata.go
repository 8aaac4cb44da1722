package track

import "sort"

// Metadata is a derived, read-only summary of a dataset. For an empty
// dataset the counts are zero, the unique sets are empty and the span fields
// are null.
type Metadata struct {
	RecordCount      int        `json:"record_count"`
	TimeStart        *Timestamp `json:"time_start"`
	TimeEnd          *Timestamp `json:"time_end"`
	UniqueCallsigns  []string   `json:"unique_callsigns"`
	UniqueCategories []string   `json:"unique_categories"`
	UniqueSquawks    []string   `json:"unique_squawks"`
	AltitudeMin      *float64   `json:"altitude_min"`
	AltitudeMax      *float64   `json:"altitude_max"`
}

// summarize computes the metadata for a dataset already sorted by timestamp.
func summarize(records []Record) Metadata {
	meta := Metadata{
		RecordCount:      len(records),
		UniqueCallsigns:  []string{},
		UniqueCategories: []string{},
		UniqueSquawks:    []string{},
	}
	if len(records) == 0 {
		return meta
	}

	first := records[0].Timestamp
	last := records[len(records)-1].Timestamp
	meta.TimeStart = &first
	meta.TimeEnd = &last

	callsigns := make(map[string]bool)
	categories := make(map[string]bool)
	squawks := make(map[string]bool)

	for _, rec := range records {
		if rec.Callsign != nil {
			callsigns[*rec.Callsign] = true
		}
		if rec.Category != nil {
			categories[*rec.Category] = true
		}
		if rec.Squawk != nil {
			squawks[*rec.Squawk] = true
		}
		if rec.AltitudeFt != nil {
			alt := *rec.AltitudeFt
			if meta.AltitudeMin == nil || alt < *meta.AltitudeMin {
				v := alt
				meta.AltitudeMin = &v
			}
			if meta.AltitudeMax == nil || alt > *meta.AltitudeMax {
				v := alt
				meta.AltitudeMax = &v
			}
		}
	}

	meta.UniqueCallsigns = sortedKeys(callsigns)
	meta.UniqueCategories = sortedKeys(categories)
	meta.UniqueSquawks = sortedKeys(squawks)
	return meta
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
