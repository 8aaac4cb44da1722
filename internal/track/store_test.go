package track

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func i64Ptr(i int64) *int64     { return &i }

func tsAt(sec int) Timestamp {
	return Timestamp(time.Date(2024, 1, 1, 10, 0, sec, 0, time.UTC))
}

// report builds a minimal valid raw report.
func report(ts, callsign string, altitude float64) RawRecord {
	alt := FlexFloat64(altitude)
	return RawRecord{
		Timestamp:  ts,
		Callsign:   strPtr(callsign),
		AltitudeFt: &alt,
	}
}

func TestLoadSortsByTimestamp(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]RawRecord{
		report("2024-01-01T10:00:03Z", "VLG100", 30000),
		report("2024-01-01T10:00:01Z", "IBE001", 10000),
		report("2024-01-01T10:00:02Z", "IBE002", 20000),
	})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	all := store.GetAll()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Errorf("records out of order at %d: %v before %v", i, all[i].Timestamp, all[i-1].Timestamp)
		}
	}
	if *all[0].Callsign != "IBE001" || *all[2].Callsign != "VLG100" {
		t.Errorf("unexpected order: %v, %v, %v", *all[0].Callsign, *all[1].Callsign, *all[2].Callsign)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	store := NewStore()

	raw := make([]RawRecord, 0, 10)
	for i := 0; i < 10; i++ {
		rr := report(fmt.Sprintf("2024-01-01T10:00:%02dZ", i), fmt.Sprintf("AAA%03d", i), float64(1000*i))
		n := FlexInt64(2000 + i)
		rr.TrackNumber = &n
		sq := FlexString("0412")
		rr.Squawk = &sq
		rr.Category = strPtr("CAT048")
		rr.DataSource = strPtr("010:020")
		raw = append(raw, rr)
	}
	if _, err := store.Load(raw); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	all := store.GetAll()
	if len(all) != 10 {
		t.Fatalf("len = %d, want 10", len(all))
	}
	for i, rec := range all {
		want := Record{
			Timestamp:   tsAt(i),
			TrackNumber: i64Ptr(int64(2000 + i)),
			Callsign:    strPtr(fmt.Sprintf("AAA%03d", i)),
			Squawk:      strPtr("0412"),
			AltitudeFt:  f64Ptr(float64(1000 * i)),
			Category:    strPtr("CAT048"),
			DataSource:  strPtr("010:020"),
		}
		if diff := cmp.Diff(want, rec); diff != "" {
			t.Errorf("record %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestLoadRejectsBatchAtomically(t *testing.T) {
	store := NewStore()
	if _, err := store.Load([]RawRecord{report("2024-01-01T10:00:01Z", "IBE001", 10000)}); err != nil {
		t.Fatalf("initial Load error: %v", err)
	}

	_, err := store.Load([]RawRecord{
		report("2024-01-01T10:00:02Z", "IBE002", 20000),
		{Timestamp: "not a timestamp"},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// The previous dataset must be fully intact.
	if store.Size() != 1 {
		t.Errorf("Size = %d, want 1 (previous dataset)", store.Size())
	}
	all := store.GetAll()
	if len(all) != 1 || *all[0].Callsign != "IBE001" {
		t.Errorf("previous dataset disturbed: %+v", all)
	}
}

func TestLoadEmptyBatch(t *testing.T) {
	store := NewStore()
	if _, err := store.Load([]RawRecord{report("2024-01-01T10:00:01Z", "IBE001", 10000)}); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	meta, err := store.Load(nil)
	if err != nil {
		t.Fatalf("empty Load error: %v", err)
	}
	if meta.RecordCount != 0 {
		t.Errorf("RecordCount = %d, want 0", meta.RecordCount)
	}
	if store.Size() != 0 {
		t.Errorf("Size = %d, want 0", store.Size())
	}
}

func TestClear(t *testing.T) {
	store := NewStore()
	if _, err := store.Load([]RawRecord{report("2024-01-01T10:00:01Z", "IBE001", 10000)}); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	store.Clear()

	if store.Size() != 0 {
		t.Errorf("Size = %d, want 0", store.Size())
	}
	if meta := store.Metadata(); meta.RecordCount != 0 {
		t.Errorf("RecordCount = %d, want 0", meta.RecordCount)
	}
}

func TestLoadReturnsMetadata(t *testing.T) {
	store := NewStore()
	meta, err := store.Load([]RawRecord{
		report("2024-01-01T10:00:01Z", "IBE001", 10000),
		report("2024-01-01T10:00:03Z", "VLG100", 30000),
	})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if meta.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", meta.RecordCount)
	}
	if meta.TimeStart == nil || meta.TimeStart.String() != "2024-01-01T10:00:01.000000Z" {
		t.Errorf("TimeStart = %v, want 2024-01-01T10:00:01.000000Z", meta.TimeStart)
	}
	if meta.TimeEnd == nil || meta.TimeEnd.String() != "2024-01-01T10:00:03.000000Z" {
		t.Errorf("TimeEnd = %v, want 2024-01-01T10:00:03.000000Z", meta.TimeEnd)
	}
	if diff := cmp.Diff([]string{"IBE001", "VLG100"}, meta.UniqueCallsigns); diff != "" {
		t.Errorf("UniqueCallsigns mismatch (-want +got):\n%s", diff)
	}
	if meta.AltitudeMin == nil || *meta.AltitudeMin != 10000 {
		t.Errorf("AltitudeMin = %v, want 10000", meta.AltitudeMin)
	}
	if meta.AltitudeMax == nil || *meta.AltitudeMax != 30000 {
		t.Errorf("AltitudeMax = %v, want 30000", meta.AltitudeMax)
	}
}

func TestEmptyMetadata(t *testing.T) {
	meta := NewStore().Metadata()

	if meta.RecordCount != 0 {
		t.Errorf("RecordCount = %d, want 0", meta.RecordCount)
	}
	if meta.TimeStart != nil || meta.TimeEnd != nil {
		t.Errorf("time span should be nil, got %v..%v", meta.TimeStart, meta.TimeEnd)
	}
	if meta.AltitudeMin != nil || meta.AltitudeMax != nil {
		t.Errorf("altitude span should be nil, got %v..%v", meta.AltitudeMin, meta.AltitudeMax)
	}
	if len(meta.UniqueCallsigns) != 0 || meta.UniqueCallsigns == nil {
		t.Errorf("UniqueCallsigns should be an empty slice, got %#v", meta.UniqueCallsigns)
	}
	if len(meta.UniqueCategories) != 0 || len(meta.UniqueSquawks) != 0 {
		t.Errorf("unique sets should be empty, got %v / %v", meta.UniqueCategories, meta.UniqueSquawks)
	}
}

func TestOnDataChanged(t *testing.T) {
	store := NewStore()
	var got []int
	store.OnDataChanged(func(meta Metadata) {
		got = append(got, meta.RecordCount)
	})

	if _, err := store.Load([]RawRecord{report("2024-01-01T10:00:01Z", "IBE001", 10000)}); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	store.Clear()

	if diff := cmp.Diff([]int{1, 0}, got); diff != "" {
		t.Errorf("callback counts mismatch (-want +got):\n%s", diff)
	}
}

// TestConcurrentReadersAndLoads exercises the swap under the race detector:
// readers must always observe a complete dataset, never a mix of generations.
func TestConcurrentReadersAndLoads(t *testing.T) {
	store := NewStore()

	// Each generation has a distinct size, so a torn read would show up as
	// an unknown count.
	batches := make([][]RawRecord, 5)
	for gen := range batches {
		batch := make([]RawRecord, (gen+1)*10)
		for i := range batch {
			batch[i] = report(fmt.Sprintf("2024-01-01T10:%02d:%02dZ", gen, i%60), "GEN", float64(gen))
		}
		batches[gen] = batch
	}
	valid := map[int]bool{0: true, 10: true, 20: true, 30: true, 40: true, 50: true}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := len(store.GetAll())
				if !valid[n] {
					t.Errorf("observed dataset of %d records", n)
					return
				}
				if m := store.Metadata(); !valid[m.RecordCount] {
					t.Errorf("observed metadata count %d", m.RecordCount)
					return
				}
			}
		}()
	}

	for round := 0; round < 20; round++ {
		if _, err := store.Load(batches[round%len(batches)]); err != nil {
			t.Errorf("Load error: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
