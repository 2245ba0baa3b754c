package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/loupelabs/loupe/pkg/api"
)

// Supported output formats.
const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// DefaultRequestFields is the CSV column set used when the caller doesn't
// supply one.
var DefaultRequestFields = []string{
	"request_id", "created_at", "model", "provider", "status",
	"user_id", "prompt_tokens", "completion_tokens", "total_tokens",
	"cost", "latency",
}

// DefaultSessionFields is the CSV column set for session exports.
var DefaultSessionFields = []string{
	"session_id", "created_at", "completed_at", "user_id",
	"request_count", "total_tokens", "total_cost",
}

// Sink serializes records incrementally to an output stream. Records are
// never buffered: each Write lands on the stream before the next record is
// fetched. A sink is owned by exactly one export job and must be closed on
// every exit path.
type Sink interface {
	Write(rec api.Record) error
	Close() error
}

// NewSink builds a sink for the named format. csvFields only applies to the
// csv format; nil selects DefaultRequestFields.
func NewSink(format string, w io.WriteCloser, csvFields []string) (Sink, error) {
	switch format {
	case FormatJSONL:
		return &jsonlSink{w: w}, nil
	case FormatJSON:
		return &jsonArraySink{w: w}, nil
	case FormatCSV:
		if csvFields == nil {
			csvFields = DefaultRequestFields
		}
		return newCSVSink(w, csvFields)
	default:
		return nil, fmt.Errorf("unsupported format %q (use jsonl, json, or csv)", format)
	}
}

// jsonlSink writes one compact JSON object per line.
type jsonlSink struct {
	w io.WriteCloser
}

func (s *jsonlSink) Write(rec api.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (s *jsonlSink) Close() error {
	return s.w.Close()
}

// jsonArraySink wraps the whole job in a single JSON array. The
// first-record flag is job-scoped, so records stay comma-separated
// correctly across batch boundaries.
type jsonArraySink struct {
	w       io.WriteCloser
	started bool
}

func (s *jsonArraySink) Write(rec api.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	var prefix string
	if !s.started {
		prefix = "[\n"
		s.started = true
	} else {
		prefix = ",\n"
	}

	if _, err := io.WriteString(s.w, prefix); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (s *jsonArraySink) Close() error {
	var closing string
	if s.started {
		closing = "\n]\n"
	} else {
		closing = "[]\n"
	}
	if _, err := io.WriteString(s.w, closing); err != nil {
		s.w.Close()
		return fmt.Errorf("failed to finalize output: %w", err)
	}
	return s.w.Close()
}

// csvSink emits a header row followed by one RFC 4180 row per record.
// Fields containing commas, quotes, or newlines are quoted with internal
// quotes doubled; plain values stay unquoted.
type csvSink struct {
	w      io.WriteCloser
	csv    *csv.Writer
	fields []string
}

func newCSVSink(w io.WriteCloser, fields []string) (*csvSink, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	return &csvSink{w: w, csv: cw, fields: fields}, nil
}

func (s *csvSink) Write(rec api.Record) error {
	row := make([]string, len(s.fields))
	for i, field := range s.fields {
		row[i] = fieldString(rec[field])
	}
	if err := s.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (s *csvSink) Close() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		s.w.Close()
		return fmt.Errorf("failed to flush csv output: %w", err)
	}
	return s.w.Close()
}

// fieldString renders one record field as a CSV cell. Missing fields are
// empty; structured values fall back to their JSON encoding.
func fieldString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
