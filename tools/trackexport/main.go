// Package main provides a tool to export a track-report dataset to a SQLite
// file for offline analysis. Input is either a JSON dump of records (as
// returned by get_all) or a live fetch from a running server's message
// channel.
package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"asterix_server/internal/track"
)

const schema = `
CREATE TABLE IF NOT EXISTS track_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	track_number INTEGER,
	callsign TEXT,
	squawk TEXT,
	latitude REAL,
	longitude REAL,
	altitude_ft REAL,
	ground_speed REAL,
	heading REAL,
	category TEXT,
	data_source TEXT
);

CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON track_reports(timestamp);
CREATE INDEX IF NOT EXISTS idx_reports_callsign ON track_reports(callsign);
CREATE INDEX IF NOT EXISTS idx_reports_squawk ON track_reports(squawk);
`

func main() {
	input := flag.String("input", "", "JSON dump of records (array)")
	addr := flag.String("addr", "", "Fetch live via the message channel (host:port)")
	output := flag.String("output", "tracks.db", "Output SQLite file")
	showStats := flag.Bool("stats", false, "Print record count to stderr")
	flag.Parse()

	records, err := loadRecords(*input, *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := writeSQLite(*output, records); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}

	if *showStats {
		fmt.Fprintf(os.Stderr, "exported %d records to %s\n", len(records), *output)
	}
}

func loadRecords(input, addr string) ([]track.Record, error) {
	switch {
	case input != "":
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		var records []track.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse dump: %w", err)
		}
		return records, nil
	case addr != "":
		return fetchAll(addr)
	default:
		return nil, fmt.Errorf("either -input or -addr is required")
	}
}

// fetchAll issues a get_all request on the message channel and returns the
// records. Push events that arrive before the response are skipped.
func fetchAll(addr string) ([]track.Record, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, `{"action":"get_all"}`); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 200*1024*1024)

	for scanner.Scan() {
		var outcome struct {
			Type string `json:"type"`
			Data struct {
				Records []track.Record `json:"records"`
				Detail  string         `json:"detail"`
			} `json:"data"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &outcome); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		switch outcome.Type {
		case "get_all_result":
			return outcome.Data.Records, nil
		case "error":
			return nil, fmt.Errorf("server error: %s", outcome.Data.Detail)
		}
		// data_loaded / data_cleared events; keep reading.
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("connection closed before response")
}

func writeSQLite(path string, records []track.Record) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO track_reports (timestamp, track_number, callsign, squawk,
		                           latitude, longitude, altitude_ft,
		                           ground_speed, heading, category, data_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(
			rec.Timestamp.String(), rec.TrackNumber, rec.Callsign, rec.Squawk,
			rec.Latitude, rec.Longitude, rec.AltitudeFt,
			rec.GroundSpeed, rec.Heading, rec.Category, rec.DataSource,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert record: %w", err)
		}
	}

	return tx.Commit()
}
