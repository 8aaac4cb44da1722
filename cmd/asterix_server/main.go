// Command asterix_server serves a decoded ASTERIX session from memory.
//
// Two access paths share one store:
//
//   - REST API (chi): health, decoded-batch upload, dataset metadata.
//   - Message channel (newline-framed JSON over TCP): get_all, apply_filters,
//     get_metadata, clear_data; plus data_loaded/data_cleared push events.
//
// Optionally, a NATS subject can feed decoded record batches straight into
// the store (the decoder-side producer path).
//
// Usage:
//
//	asterix_server [options]
//
// Options:
//
//	-config FILE        YAML config file (optional)
//	-http-port N        REST API port (default: 8000, env: HTTP_PORT)
//	-channel-port N     Message channel port (default: 8765, env: CHANNEL_PORT)
//	-nats               Enable the NATS decoder feed
//	-nats-url URL       NATS server URL (default: nats://localhost:4222, env: NATS_URL)
//	-nats-subject SUBJ  Subject carrying record batches (default: asterix.records)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"asterix_server/internal/actions"
	"asterix_server/internal/api"
	"asterix_server/internal/config"
	"asterix_server/internal/ingest"
	"asterix_server/internal/server"
	"asterix_server/internal/track"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	httpPort := flag.Int("http-port", envOrDefaultInt("HTTP_PORT", 0), "REST API port")
	channelPort := flag.Int("channel-port", envOrDefaultInt("CHANNEL_PORT", 0), "Message channel port")
	natsEnabled := flag.Bool("nats", false, "Enable the NATS decoder feed")
	natsURL := flag.String("nats-url", envOrDefault("NATS_URL", ""), "NATS server URL")
	natsSubject := flag.String("nats-subject", envOrDefault("NATS_SUBJECT", ""), "NATS subject carrying record batches")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags and env override the file.
	if *httpPort != 0 {
		cfg.Server.HTTPPort = *httpPort
	}
	if *channelPort != 0 {
		cfg.Server.ChannelPort = *channelPort
	}
	if *natsEnabled {
		cfg.NATS.Enabled = true
	}
	if *natsURL != "" {
		cfg.NATS.URL = *natsURL
	}
	if *natsSubject != "" {
		cfg.NATS.Subject = *natsSubject
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shared in-memory store (single source of truth).
	store := track.NewStore()
	dispatcher := actions.New(store)
	channel := server.New(":"+strconv.Itoa(cfg.Server.ChannelPort), dispatcher)

	// Push dataset changes to every connected channel client.
	store.OnDataChanged(func(meta track.Metadata) {
		eventType := "data_loaded"
		if meta.RecordCount == 0 {
			eventType = "data_cleared"
		}
		channel.Broadcast(actions.Outcome{Type: eventType, Status: "ok", Data: meta})
	})

	if cfg.NATS.Enabled {
		source, err := ingest.Start(ingest.Config{URL: cfg.NATS.URL, Subject: cfg.NATS.Subject}, store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting NATS ingest: %v\n", err)
			os.Exit(1)
		}
		defer source.Close()
	}

	httpServer := api.NewServer(store, api.Config{Port: cfg.Server.HTTPPort})
	go func() {
		if err := httpServer.Run(); err != nil {
			log.Printf("[http] server stopped: %v", err)
			stop()
		}
	}()

	if err := channel.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Channel server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
