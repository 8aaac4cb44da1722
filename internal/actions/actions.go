// Package actions routes inbound request messages to store operations and
// produces exactly one Outcome per dispatchable request.
package actions

import (
	"encoding/json"
	"fmt"
	"sync"

	"asterix_server/internal/track"
)

// Outcome is a single response message addressed to the requesting
// connection.
type Outcome struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// Handler executes one named action. The payload is the full request message,
// so action-specific fields sit next to "action" as the clients send them.
type Handler func(payload json.RawMessage) (Outcome, error)

// Dispatcher resolves action names against a registry of handlers. It is
// stateless apart from the store reference and is shared by every connection.
type Dispatcher struct {
	store *track.Store

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates a dispatcher with the built-in actions registered:
// get_all, apply_filters, get_metadata, clear_data.
func New(store *track.Store) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		handlers: make(map[string]Handler),
	}
	d.Register("get_all", d.handleGetAll)
	d.Register("apply_filters", d.handleApplyFilters)
	d.Register("get_metadata", d.handleGetMetadata)
	d.Register("clear_data", d.handleClearData)
	return d
}

// Register adds or replaces a named action handler.
func (d *Dispatcher) Register(action string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = h
}

// envelope extracts the required action field; everything else stays in the
// raw payload for the handler.
type envelope struct {
	Action string `json:"action"`
}

// Dispatch parses a raw request message and sends exactly one Outcome via
// respond. Malformed requests, unknown actions and handler failures all
// become error Outcomes; nothing escapes to the connection loop.
func (d *Dispatcher) Dispatch(raw []byte, respond func(Outcome)) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		respond(errorOutcome(fmt.Sprintf("Invalid JSON: %v", err)))
		return
	}
	if env.Action == "" {
		respond(errorOutcome("Missing 'action' field."))
		return
	}

	d.mu.RLock()
	h, ok := d.handlers[env.Action]
	d.mu.RUnlock()
	if !ok {
		respond(errorOutcome(fmt.Sprintf("Unknown action: '%s'", env.Action)))
		return
	}

	respond(d.invoke(env.Action, h, raw))
}

// invoke runs a handler, converting failures (including panics) into error
// Outcomes scoped to this request.
func (d *Dispatcher) invoke(action string, h Handler, payload json.RawMessage) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = errorOutcome(fmt.Sprintf("Action '%s' failed: %v", action, r))
		}
	}()

	out, err := h(payload)
	if err != nil {
		return errorOutcome(fmt.Sprintf("Action '%s' failed: %v", action, err))
	}
	return out
}

// handleGetAll returns every record currently in the store, unfiltered.
//
// Request:  { "action": "get_all" }
// Response: { "type": "get_all_result", "status": "ok",
//             "data": { "records": [ ... ] } }
func (d *Dispatcher) handleGetAll(json.RawMessage) (Outcome, error) {
	return Outcome{
		Type:   "get_all_result",
		Status: "ok",
		Data:   map[string]any{"records": d.store.GetAll()},
	}, nil
}

// handleApplyFilters applies the supplied criteria and returns the matches.
//
// Request:
//
//	{
//	  "action"      : "apply_filters",
//	  "callsigns"   : ["IBE001", "VLG202"],   // optional
//	  "categories"  : ["CAT048"],             // optional
//	  "squawks"     : ["2000"],               // optional
//	  "altitude_min": 5000,                   // optional (feet)
//	  "altitude_max": 35000,                  // optional (feet)
//	  "time_start"  : "2024-01-01T10:00:00Z", // optional ISO-8601
//	  "time_end"    : "2024-01-01T11:00:00Z"  // optional ISO-8601
//	}
//
// Response: { "type": "apply_filters_result", "status": "ok",
//             "data": { "records": [ ... ], "count": 123 } }
func (d *Dispatcher) handleApplyFilters(payload json.RawMessage) (Outcome, error) {
	var criteria track.Criteria
	if err := json.Unmarshal(payload, &criteria); err != nil {
		return Outcome{}, fmt.Errorf("invalid filter values: %w", err)
	}

	records, err := d.store.Filter(criteria)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Type:   "apply_filters_result",
		Status: "ok",
		Data:   map[string]any{"records": records, "count": len(records)},
	}, nil
}

// handleGetMetadata returns the dataset summary (record count, time range,
// unique values for filter dropdowns). Safe to call on an empty store.
//
// Request:  { "action": "get_metadata" }
// Response: { "type": "get_metadata_result", "status": "ok", "data": { ... } }
func (d *Dispatcher) handleGetMetadata(json.RawMessage) (Outcome, error) {
	return Outcome{
		Type:   "get_metadata_result",
		Status: "ok",
		Data:   d.store.Metadata(),
	}, nil
}

// handleClearData wipes all data from the store.
//
// Request:  { "action": "clear_data" }
// Response: { "type": "clear_data_result", "status": "ok",
//             "data": { "detail": "Store cleared." } }
func (d *Dispatcher) handleClearData(json.RawMessage) (Outcome, error) {
	d.store.Clear()
	return Outcome{
		Type:   "clear_data_result",
		Status: "ok",
		Data:   map[string]any{"detail": "Store cleared."},
	}, nil
}

func errorOutcome(detail string) Outcome {
	return Outcome{
		Type:   "error",
		Status: "error",
		Data:   map[string]any{"detail": detail},
	}
}
