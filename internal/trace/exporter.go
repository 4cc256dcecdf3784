package trace

import (
	"encoding/json"
	"fmt"
	"sync"
)

// NoopExporter is an exporter that does nothing; the default for a nil
// Instrumentation.Tracer and for NeverSample configurations.
type NoopExporter struct{}

func (e *NoopExporter) Export(span *Span) error { return nil }
func (e *NoopExporter) Close() error            { return nil }

// NewNoopExporter creates a new noop exporter.
func NewNoopExporter() *NoopExporter { return &NoopExporter{} }

// StdoutExporter writes one JSON line per span to stdout, for the
// cmd/socks-server --trace debug flag.
type StdoutExporter struct {
	mu     sync.Mutex
	pretty bool
}

func (e *StdoutExporter) Export(span *Span) error {
	if span == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := marshalSpan(span, e.pretty)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func (e *StdoutExporter) Close() error { return nil }

// NewStdoutExporter creates a new stdout exporter.
func NewStdoutExporter(pretty bool) *StdoutExporter {
	return &StdoutExporter{pretty: pretty}
}

func marshalSpan(span *Span, pretty bool) ([]byte, error) {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(span, "", "  ")
	} else {
		data, err = json.Marshal(span)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal span: %w", err)
	}
	return data, nil
}
