package track

import "fmt"

// Criteria is a set of independent, optional constraints combined with
// logical AND. A nil/empty field means no restriction on that dimension.
// Range bounds are inclusive. Time bounds are ISO-8601 strings, parsed when
// the criteria are compiled.
type Criteria struct {
	Callsigns   []string `json:"callsigns"`
	Categories  []string `json:"categories"`
	Squawks     []string `json:"squawks"`
	AltitudeMin *float64 `json:"altitude_min"`
	AltitudeMax *float64 `json:"altitude_max"`
	TimeStart   string   `json:"time_start"`
	TimeEnd     string   `json:"time_end"`
}

// matcher is a compiled Criteria with time bounds parsed.
type matcher struct {
	callsigns  map[string]bool
	categories map[string]bool
	squawks    map[string]bool
	altMin     *float64
	altMax     *float64
	timeStart  *Timestamp
	timeEnd    *Timestamp
}

// compile parses the time bounds and builds membership sets. A malformed
// time bound fails the whole request; no partial filtering is applied.
func (c Criteria) compile() (matcher, error) {
	m := matcher{
		callsigns:  toSet(c.Callsigns),
		categories: toSet(c.Categories),
		squawks:    toSet(c.Squawks),
		altMin:     c.AltitudeMin,
		altMax:     c.AltitudeMax,
	}

	if c.TimeStart != "" {
		ts, err := ParseTimestamp(c.TimeStart)
		if err != nil {
			return matcher{}, fmt.Errorf("time_start: %w", err)
		}
		m.timeStart = &ts
	}
	if c.TimeEnd != "" {
		ts, err := ParseTimestamp(c.TimeEnd)
		if err != nil {
			return matcher{}, fmt.Errorf("time_end: %w", err)
		}
		m.timeEnd = &ts
	}
	return m, nil
}

func (m matcher) matches(rec Record) bool {
	if len(m.callsigns) > 0 && (rec.Callsign == nil || !m.callsigns[*rec.Callsign]) {
		return false
	}
	if len(m.categories) > 0 && (rec.Category == nil || !m.categories[*rec.Category]) {
		return false
	}
	if len(m.squawks) > 0 && (rec.Squawk == nil || !m.squawks[*rec.Squawk]) {
		return false
	}
	if m.altMin != nil && (rec.AltitudeFt == nil || *rec.AltitudeFt < *m.altMin) {
		return false
	}
	if m.altMax != nil && (rec.AltitudeFt == nil || *rec.AltitudeFt > *m.altMax) {
		return false
	}
	if m.timeStart != nil && rec.Timestamp.Before(*m.timeStart) {
		return false
	}
	if m.timeEnd != nil && m.timeEnd.Before(rec.Timestamp) {
		return false
	}
	return true
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
