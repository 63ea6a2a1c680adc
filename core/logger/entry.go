package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldTimestamp = "timestamp_micros"
	fieldSessionID = "session_id"
)

// ErrUnknownLogType is returned when decoding an entry whose event isn't
// known to this version of the logger.
var ErrUnknownLogType = errors.New("unknown log type")

// LogEntry is a single event in the log.
type LogEntry struct {
	TimestampMicros int64
	SessionID       string
	LogType         LogType
}

// GetLogType returns the event, it's nil for entries of an unknown type.
func (le *LogEntry) GetLogType() LogType {
	return le.LogType
}

// GetSessionId returns the ID of the session the event belongs to.
func (le *LogEntry) GetSessionId() string {
	return le.SessionID
}

// ToStruct converts the entry into its wire representation.
func (le *LogEntry) ToStruct() (*structpb.Struct, error) {
	fields := map[string]interface{}{
		fieldTimestamp: le.TimestampMicros,
	}
	if le.SessionID != "" {
		fields[fieldSessionID] = le.SessionID
	}

	if le.LogType != nil {
		fields[le.LogType.logTypeName()] = le.LogType.fields()
	}

	return structpb.NewStruct(fields)
}

// FromStruct populates the entry from its wire representation. Entries with
// an unrecognized event are populated with a nil LogType and
// ErrUnknownLogType is returned.
func (le *LogEntry) FromStruct(msg *structpb.Struct) error {
	fields := msg.AsMap()

	if ts, ok := fields[fieldTimestamp].(float64); ok {
		le.TimestampMicros = int64(ts)
	}
	le.SessionID, _ = fields[fieldSessionID].(string)
	le.LogType = nil

	for name, factory := range logTypes {
		payload, ok := fields[name]
		if !ok {
			continue
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		event := factory()
		if err := json.Unmarshal(raw, event); err != nil {
			return fmt.Errorf("decoding %s: %w", name, err)
		}
		le.LogType = event
		return nil
	}

	return ErrUnknownLogType
}

// MarshalJSON implements json.Marshaler.
func (le *LogEntry) MarshalJSON() ([]byte, error) {
	msg, err := le.ToStruct()
	if err != nil {
		return nil, err
	}
	out, err := protojson.Marshal(msg)
	if err != nil {
		return nil, err
	}

	// protojson doesn't guarantee stable whitespace.
	var compact bytes.Buffer
	if err := json.Compact(&compact, out); err != nil {
		return nil, err
	}
	return compact.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (le *LogEntry) UnmarshalJSON(data []byte) error {
	var msg structpb.Struct
	if err := protojson.Unmarshal(data, &msg); err != nil {
		return err
	}
	return le.FromStruct(&msg)
}

// ReadJSONLinesLog parses a newline delimited JSON log. Entries with unknown
// event types are passed to the handler with a nil LogType.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var logEntry LogEntry
		if err := logEntry.UnmarshalJSON(rawEntry); err != nil && !errors.Is(err, ErrUnknownLogType) {
			return err
		}

		handler(&logEntry)
	}
	return nil
}
