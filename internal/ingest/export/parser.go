package export

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/claude/healthexport/internal/models"
)

// State is the lifecycle of a Parser.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	// excerptWindow is how much sanitized input is retained for error
	// excerpts.
	excerptWindow = 16 << 10
	excerptBefore = 160
	excerptAfter  = 80
)

// ParseError is a fatal XML syntax error. Excerpt is the input around the
// failure point.
type ParseError struct {
	Message string `json:"message"`
	Excerpt string `json:"excerpt"`
	Line    int    `json:"line,omitempty"`
	Offset  int64  `json:"offset"`
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("XML syntax error on line %d: %s", e.Line, e.Message)
	}
	return "XML syntax error: " + e.Message
}

// Parser streams one export through the classifier. A Parser is single-use.
type Parser struct {
	log   *slog.Logger
	state State
	stats ParseStats
}

// NewParser creates a parser in the Idle state.
func NewParser(log *slog.Logger) *Parser {
	return &Parser{log: log}
}

// State returns the current lifecycle state.
func (p *Parser) State() State {
	return p.state
}

// Stats returns the counters of the last parse.
func (p *Parser) Stats() ParseStats {
	return p.stats
}

// Parse sanitizes and tokenizes r, classifying each element as it opens.
// On a syntax error it returns a *ParseError and no dataset.
func (p *Parser) Parse(r io.Reader) (*models.Dataset, error) {
	if p.state != StateIdle {
		return nil, fmt.Errorf("parser is %s, not idle", p.state)
	}
	p.state = StateStreaming

	rec := &tailBuffer{size: excerptWindow}
	dec := xml.NewDecoder(io.TeeReader(NewSanitizer(r), rec))
	dec.Strict = true

	b := NewBuilder()
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.state = StateFailed
			p.stats = b.Stats()
			return nil, p.failure(err, dec.InputOffset(), rec)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := rawElement(t)
			if err := b.Open(el); err != nil {
				p.log.Debug("skipping element", "element", el.Name, "offset", dec.InputOffset(), "error", err)
			}
		case xml.EndElement:
			b.Close(t.Name.Local)
		}
	}

	p.stats = b.Stats()
	p.state = StateCompleted
	p.logUnrecognized()
	return b.Finish(), nil
}

func (p *Parser) failure(err error, offset int64, rec *tailBuffer) error {
	var syn *xml.SyntaxError
	if !errors.As(err, &syn) {
		return fmt.Errorf("reading export: %w", err)
	}
	return &ParseError{
		Message: syn.Msg,
		Excerpt: rec.excerpt(offset, excerptBefore, excerptAfter),
		Line:    syn.Line,
		Offset:  offset,
	}
}

func (p *Parser) logUnrecognized() {
	if len(p.stats.Unrecognized) == 0 {
		return
	}
	types := make([]string, 0, len(p.stats.Unrecognized))
	for t := range p.stats.Unrecognized {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		p.log.Debug("unrecognized record type", "type", t, "count", p.stats.Unrecognized[t])
	}
}

func rawElement(t xml.StartElement) RawElement {
	attrs := make(map[string]string, len(t.Attr))
	for _, a := range t.Attr {
		attrs[a.Name.Local] = a.Value
	}
	return RawElement{Name: t.Name.Local, Attrs: attrs}
}

// tailBuffer keeps the last size bytes written to it along with their
// absolute stream offset.
type tailBuffer struct {
	buf   []byte
	size  int
	total int64
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.size {
		t.buf = t.buf[len(t.buf)-t.size:]
	}
	t.total += int64(len(p))
	return len(p), nil
}

func (t *tailBuffer) excerpt(offset int64, before, after int) string {
	start := t.total - int64(len(t.buf))
	lo := max(offset-int64(before), start)
	hi := min(offset+int64(after), t.total)
	var s string
	if lo < hi {
		s = string(t.buf[lo-start : hi-start])
	} else {
		s = string(t.buf[max(0, len(t.buf)-before):])
	}
	return strings.TrimSpace(strings.ToValidUTF8(s, ""))
}
