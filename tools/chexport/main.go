// Package main provides a tool to ship a track-report dataset to a
// ClickHouse analytics table. Input is either a JSON dump of records (as
// returned by get_all) or a live fetch from a running server's message
// channel.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"asterix_server/internal/track"
)

const schema = `
CREATE TABLE IF NOT EXISTS track_reports (
	timestamp     DateTime64(6, 'UTC'),
	track_number  Nullable(Int64),
	callsign      LowCardinality(Nullable(String)),
	squawk        LowCardinality(Nullable(String)),
	latitude      Nullable(Float64),
	longitude     Nullable(Float64),
	altitude_ft   Nullable(Float64),
	ground_speed  Nullable(Float64),
	heading       Nullable(Float64),
	category      LowCardinality(Nullable(String)),
	data_source   LowCardinality(Nullable(String)),
	created_at    DateTime64(3) DEFAULT now64(3)
)
ENGINE = MergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (timestamp)
SETTINGS index_granularity = 8192`

func main() {
	chHost := flag.String("ch-host", "localhost", "ClickHouse host")
	chPort := flag.Int("ch-port", 9000, "ClickHouse port")
	chUser := flag.String("ch-user", "default", "ClickHouse user")
	chPassword := flag.String("ch-password", "", "ClickHouse password")
	chDB := flag.String("ch-db", "asterix", "ClickHouse database")

	input := flag.String("input", "", "JSON dump of records (array)")
	addr := flag.String("addr", "", "Fetch live via the message channel (host:port)")
	showStats := flag.Bool("stats", false, "Print record count to stderr")
	flag.Parse()

	records, err := loadRecords(*input, *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", *chHost, *chPort)},
		Auth: clickhouse.Auth{
			Database: *chDB,
			Username: *chUser,
			Password: *chPassword,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ClickHouse: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging ClickHouse: %v\n", err)
		os.Exit(1)
	}

	if err := conn.Exec(ctx, schema); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema: %v\n", err)
		os.Exit(1)
	}

	batch, err := conn.PrepareBatch(ctx, `
		INSERT INTO track_reports (timestamp, track_number, callsign, squawk,
		                           latitude, longitude, altitude_ft,
		                           ground_speed, heading, category, data_source)
	`)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing batch: %v\n", err)
		os.Exit(1)
	}

	for _, rec := range records {
		err := batch.Append(
			rec.Timestamp.Time(), rec.TrackNumber, rec.Callsign, rec.Squawk,
			rec.Latitude, rec.Longitude, rec.AltitudeFt,
			rec.GroundSpeed, rec.Heading, rec.Category, rec.DataSource,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error appending to batch: %v\n", err)
			os.Exit(1)
		}
	}

	if err := batch.Send(); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending batch: %v\n", err)
		os.Exit(1)
	}

	if *showStats {
		fmt.Fprintf(os.Stderr, "shipped %d records to %s\n", len(records), *chDB)
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
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("connection closed before response")
}
