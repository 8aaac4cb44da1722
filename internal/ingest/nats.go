// Package ingest subscribes to the decoder's NATS feed and loads decoded
// target-report batches into the track store.
package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nats-io/nats.go"

	"asterix_server/internal/track"
)

// Config holds NATS connection settings.
type Config struct {
	URL     string
	Subject string
}

// Source consumes decoded record batches from a NATS subject. Each message
// payload is a JSON array of records keyed by the schema field names; the
// whole batch replaces the dataset. When the message carries a reply subject,
// the metadata summary (or an error object) is sent back.
type Source struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

// Start connects to NATS and subscribes to the configured subject.
func Start(cfg Config, store *track.Store) (*Source, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("asterix_server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	sub, err := nc.Subscribe(cfg.Subject, func(msg *nats.Msg) {
		handleBatch(store, msg)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Subject, err)
	}

	log.Printf("[nats] subscribed to %s on %s", cfg.Subject, cfg.URL)
	return &Source{nc: nc, sub: sub}, nil
}

func handleBatch(store *track.Store, msg *nats.Msg) {
	records, err := track.DecodeBatch(msg.Data)
	if err != nil {
		log.Printf("[nats] rejected batch: %v", err)
		respondError(msg, err)
		return
	}

	meta := store.LoadRecords(records)
	log.Printf("[nats] loaded %s records", humanize.Comma(int64(meta.RecordCount)))

	if msg.Reply != "" {
		payload, err := json.Marshal(meta)
		if err != nil {
			return
		}
		// Reply failures mean the requester went away; best-effort.
		_ = msg.Respond(payload)
	}
}

func respondError(msg *nats.Msg, err error) {
	if msg.Reply == "" {
		return
	}
	payload, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return
	}
	_ = msg.Respond(payload)
}

// Close drains the subscription and closes the connection.
func (s *Source) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
