package export

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"
)

var (
	// doctypeSubsetRe matches a DOCTYPE declaration with an internal subset.
	doctypeSubsetRe = regexp.MustCompile(`(?i)<!DOCTYPE[\s\S]*?\]>`)

	// doctypeRe matches a plain DOCTYPE declaration.
	doctypeRe = regexp.MustCompile(`(?i)<!DOCTYPE[^>]*>`)

	predefinedEntities = [][]byte{
		[]byte("amp;"),
		[]byte("lt;"),
		[]byte("gt;"),
		[]byte("quot;"),
		[]byte("apos;"),
	}
)

const (
	utf8BOM = "\xef\xbb\xbf"

	// maxPrologSize bounds how much is buffered while looking for the root
	// element.
	maxPrologSize = 1 << 20

	// maxEntityLen is the longest reference looked at after a '&'.
	maxEntityLen = 16

	sanitizerBufferSize = 64 << 10
)

// Sanitize applies the export fixups to s: a leading byte-order mark is
// stripped, the DOCTYPE declaration (with any internal subset) is removed and
// bare '&' characters that do not start a known entity or character
// reference are escaped to "&amp;".
func Sanitize(s string) string {
	b, _ := io.ReadAll(NewSanitizer(strings.NewReader(s)))
	return string(b)
}

// sanitizer performs the same transform as Sanitize over a stream. Only the
// prolog (everything before the root element) is buffered; the body is
// escaped as it passes through.
type sanitizer struct {
	src        *bufio.Reader
	out        []byte
	pending    []byte
	prologDone bool
	err        error
}

// NewSanitizer returns a reader yielding the sanitized form of r.
func NewSanitizer(r io.Reader) io.Reader {
	return &sanitizer{src: bufio.NewReaderSize(r, sanitizerBufferSize)}
}

func (s *sanitizer) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *sanitizer) fill() {
	if !s.prologDone {
		s.prologDone = true
		prolog, err := s.readProlog()
		s.pending = []byte(sanitizeProlog(prolog))
		s.err = err
		return
	}

	chunk, err := s.src.ReadSlice('&')
	// chunk aliases the bufio buffer, which Peek below may shift.
	s.out = append(s.out[:0], chunk...)
	if len(chunk) > 0 && chunk[len(chunk)-1] == '&' {
		ahead, _ := s.src.Peek(maxEntityLen)
		if !knownEntity(ahead) {
			s.out = append(s.out, "amp;"...)
		}
	}
	s.pending = s.out
	if err == bufio.ErrBufferFull {
		err = nil
	}
	s.err = err
}

// readProlog reads up to and including the '<' that opens the root element.
func (s *sanitizer) readProlog() (string, error) {
	var buf bytes.Buffer
	for buf.Len() < maxPrologSize {
		c, err := s.src.ReadByte()
		if err != nil {
			return buf.String(), err
		}
		buf.WriteByte(c)
		if c != '<' {
			continue
		}
		next, err := s.src.Peek(1)
		if err == nil && isNameStart(next[0]) {
			break
		}
	}
	return buf.String(), nil
}

func sanitizeProlog(s string) string {
	s = strings.TrimPrefix(s, utf8BOM)
	s = removeFirst(doctypeSubsetRe, s)
	s = removeFirst(doctypeRe, s)
	return escapeAmpersands(s)
}

func removeFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

func escapeAmpersands(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		b.WriteByte(s[i])
		if s[i] == '&' && !knownEntity([]byte(s[i+1:min(len(s), i+1+maxEntityLen)])) {
			b.WriteString("amp;")
		}
	}
	return b.String()
}

// knownEntity reports whether b, the bytes following a '&', start a
// predefined entity or a numeric character reference.
func knownEntity(b []byte) bool {
	for _, name := range predefinedEntities {
		if bytes.HasPrefix(b, name) {
			return true
		}
	}
	if len(b) < 3 || b[0] != '#' {
		return false
	}
	digits, valid := b[1:], isDecimal
	if digits[0] == 'x' {
		digits, valid = digits[1:], isHex
	}
	i := 0
	for i < len(digits) && valid(digits[i]) {
		i++
	}
	return i > 0 && i < len(digits) && digits[i] == ';'
}

func isNameStart(c byte) bool {
	return c == '_' || c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isDecimal(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDecimal(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
