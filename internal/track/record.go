// Package track provides the in-memory store for decoded ASTERIX target
// reports, with atomic bulk replacement, conjunctive filtering and on-demand
// metadata summaries.
package track

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampFormat renders UTC instants with microsecond precision and a
// literal Z suffix, matching the wire format expected by clients.
const timestampFormat = "2006-01-02T15:04:05.000000Z"

// timestampLayouts are the accepted ISO-8601 input variants, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a UTC instant with the fixed wire encoding above.
type Timestamp time.Time

// ParseTimestamp parses an ISO-8601 string into a UTC Timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp(t.UTC()), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// Time returns the underlying time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Time(t).UTC()
}

// Before reports whether t is strictly before other.
func (t Timestamp) Before(other Timestamp) bool {
	return t.Time().Before(other.Time())
}

// Equal reports whether t and other represent the same instant.
func (t Timestamp) Equal(other Timestamp) bool {
	return t.Time().Equal(other.Time())
}

// String renders the wire encoding.
func (t Timestamp) String() string {
	return t.Time().Format(timestampFormat)
}

// MarshalJSON renders the wire encoding as a JSON string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts any of the ISO-8601 input variants.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Record is one decoded surveillance target report. Optional fields are
// pointers; nil means the decoder did not supply the value, and renders as
// JSON null.
type Record struct {
	Timestamp   Timestamp `json:"timestamp"`
	TrackNumber *int64    `json:"track_number"`
	Callsign    *string   `json:"callsign"`
	Squawk      *string   `json:"squawk"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	AltitudeFt  *float64  `json:"altitude_ft"`
	GroundSpeed *float64  `json:"ground_speed"`
	Heading     *float64  `json:"heading"`
	Category    *string   `json:"category"`
	DataSource  *string   `json:"data_source"`
}

// FlexInt64 handles JSON fields that can be either number or numeric string.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexInt64(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("not an integer: %q", s)
		}
		*f = FlexInt64(i)
		return nil
	}

	return fmt.Errorf("not an integer: %s", data)
}

// FlexString handles JSON fields that can be either string or number.
// Integral numbers keep their decimal form; a squawk sent as the number 2000
// becomes "2000". Leading zeros survive only when the producer sends a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		if n == float64(int64(n)) {
			*f = FlexString(strconv.FormatInt(int64(n), 10))
		} else {
			*f = FlexString(strconv.FormatFloat(n, 'f', -1, 64))
		}
		return nil
	}

	return fmt.Errorf("not a string: %s", data)
}

// FlexFloat64 handles JSON fields that can be either number or numeric string.
type FlexFloat64 float64

func (f *FlexFloat64) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat64(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = FlexFloat64(n)
		return nil
	}

	return fmt.Errorf("not a number: %s", data)
}

// RawRecord is one target report as received from the decoding layer, before
// schema validation. Scalar coercion is tolerant (number-or-string), but a
// value that fits neither form fails the record.
type RawRecord struct {
	Timestamp   string       `json:"timestamp"`
	TrackNumber *FlexInt64   `json:"track_number"`
	Callsign    *string      `json:"callsign"`
	Squawk      *FlexString  `json:"squawk"`
	Latitude    *FlexFloat64 `json:"latitude"`
	Longitude   *FlexFloat64 `json:"longitude"`
	AltitudeFt  *FlexFloat64 `json:"altitude_ft"`
	GroundSpeed *FlexFloat64 `json:"ground_speed"`
	Heading     *FlexFloat64 `json:"heading"`
	Category    *string      `json:"category"`
	DataSource  *string      `json:"data_source"`
}

// Validate coerces a raw report into the fixed schema. The timestamp is
// required; every other field is optional.
func (r RawRecord) Validate() (Record, error) {
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Timestamp:  ts,
		Callsign:   cloneString(r.Callsign),
		Category:   cloneString(r.Category),
		DataSource: cloneString(r.DataSource),
	}
	if r.TrackNumber != nil {
		n := int64(*r.TrackNumber)
		rec.TrackNumber = &n
	}
	if r.Squawk != nil {
		s := string(*r.Squawk)
		rec.Squawk = &s
	}
	rec.Latitude = cloneFloat(r.Latitude)
	rec.Longitude = cloneFloat(r.Longitude)
	rec.AltitudeFt = cloneFloat(r.AltitudeFt)
	rec.GroundSpeed = cloneFloat(r.GroundSpeed)
	rec.Heading = cloneFloat(r.Heading)
	return rec, nil
}

// DecodeBatch parses a JSON array of raw reports and validates each one.
// Any malformed or unvalidatable element fails the whole batch.
func DecodeBatch(data []byte) ([]Record, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("batch must be a JSON array: %w", err)
	}
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		var raw RawRecord
		if err := json.Unmarshal(row, &raw); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rec, err := raw.Validate()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *FlexFloat64) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}
