package feed

import (
	"compress/gzip"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	DefaultRecordTag = "job"

	// Decoded-text window the extractor is allowed to hold. A buffer that
	// grows past the cap without yielding a record is trimmed to the tail,
	// sacrificing at most the oversized/malformed record.
	maxBufferBytes = 512 * 1024
	keepTailBytes  = 64 * 1024

	readChunkBytes = 32 * 1024
	maxFieldBytes  = 4096
)

var attrRe = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_:-]*)\s*=\s*"([^"]*)"`)

// Extractor pulls complete <tag>...</tag> blocks out of a byte stream in a
// single forward pass, parsing each block into a RawRecord. It never holds
// more than the configured window of decoded text, whatever the feed size.
type Extractor struct {
	recordTag string

	// observeBuffer, when set, receives the buffer length at its per-read
	// peak, before draining. Test instrumentation only.
	observeBuffer func(n int)
}

func NewExtractor(recordTag string) *Extractor {
	if recordTag == "" {
		recordTag = DefaultRecordTag
	}
	return &Extractor{recordTag: recordTag}
}

// Run scans src (gzip-decompressed on the fly when isGzip) and calls emit
// for every complete record, in document order. emit returns false to stop
// early. A stream that ends mid-record drops the partial tail silently;
// truncated gzip tails (checksum errors) are treated the same way.
func (e *Extractor) Run(src io.Reader, isGzip bool, emit func(RawRecord) bool) error {
	if isGzip {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	openTag := "<" + e.recordTag
	closeTag := "</" + e.recordTag + ">"

	var buffer string
	chunk := make([]byte, readChunkBytes)

	for {
		n, readErr := src.Read(chunk)
		if n > 0 {
			buffer += string(chunk[:n])
			if e.observeBuffer != nil {
				e.observeBuffer(len(buffer))
			}

			var stopped bool
			buffer, stopped = e.drain(buffer, openTag, closeTag, emit)
			if stopped {
				return nil
			}

			if len(buffer) > maxBufferBytes {
				buffer = buffer[len(buffer)-keepTailBytes:]
			}
		}
		if readErr != nil {
			// io.EOF is the normal end; anything else is a cut-off stream
			// (gzip checksum tail, reset). Complete records were already
			// emitted either way.
			break
		}
	}

	e.drain(buffer, openTag, closeTag, emit)
	return nil
}

// drain extracts every complete record currently in the buffer and returns
// the unconsumed remainder. The second result reports an early stop.
func (e *Extractor) drain(buffer, openTag, closeTag string, emit func(RawRecord) bool) (string, bool) {
	for {
		start := findOpenTag(buffer, openTag)
		if start == -1 {
			return buffer, false
		}
		if start > 0 {
			// Inter-record noise before the open tag is never needed again.
			buffer = buffer[start:]
		}

		end := strings.Index(buffer, closeTag)
		if end == -1 {
			return buffer, false
		}

		openEnd := strings.IndexByte(buffer, '>')
		if openEnd == -1 || openEnd > end {
			return buffer, false
		}

		attrs := buffer[len(openTag):openEnd]
		inner := buffer[openEnd+1 : end]
		buffer = buffer[end+len(closeTag):]

		if record := parseRecord(inner, attrs); record != nil {
			if !emit(record) {
				return buffer, true
			}
		}
	}
}

// findOpenTag locates openTag followed by a tag boundary, so a record tag
// "job" never matches "<jobs>".
func findOpenTag(buffer, openTag string) int {
	from := 0
	for {
		i := strings.Index(buffer[from:], openTag)
		if i == -1 {
			return -1
		}
		i += from
		next := i + len(openTag)
		if next >= len(buffer) {
			// Boundary byte not received yet; wait for more input.
			return i
		}
		switch buffer[next] {
		case '>', ' ', '\t', '\n', '\r', '/':
			return i
		}
		from = i + 1
	}
}

// parseRecord scans the inner text of one record block for flat
// <tag>value</tag> pairs. First value per field wins; attributes on the
// record's opening tag become fields too.
func parseRecord(inner, attrs string) RawRecord {
	record := RawRecord{}

	for _, m := range attrRe.FindAllStringSubmatch(attrs, -1) {
		record.SetOnce(normalizeFieldName(m[1]), CleanText(m[2]))
	}

	pos := 0
	for {
		name, value, next := nextField(inner, pos)
		if next == -1 {
			break
		}
		pos = next
		record.SetOnce(normalizeFieldName(name), CleanText(clip(value, maxFieldBytes)))
	}

	if !record.hasIdentity() {
		return nil
	}
	return record
}

// nextField finds the next <tag ...>value</tag> pair at or after pos.
// Returns next == -1 when no further complete pair exists.
func nextField(s string, pos int) (name, value string, next int) {
	for pos < len(s) {
		lt := strings.IndexByte(s[pos:], '<')
		if lt == -1 {
			return "", "", -1
		}
		lt += pos

		nameEnd := lt + 1
		for nameEnd < len(s) && isTagNameByte(s[nameEnd], nameEnd == lt+1) {
			nameEnd++
		}
		if nameEnd == lt+1 {
			// '<' not opening a tag (comment, CDATA marker, stray bracket)
			pos = lt + 1
			continue
		}
		tagName := s[lt+1 : nameEnd]

		openEnd := strings.IndexByte(s[nameEnd:], '>')
		if openEnd == -1 {
			return "", "", -1
		}
		openEnd += nameEnd

		if s[openEnd-1] == '/' {
			// self-closing, carries no value
			pos = openEnd + 1
			continue
		}

		closing := "</" + tagName + ">"
		closeAt := strings.Index(s[openEnd:], closing)
		if closeAt == -1 {
			pos = openEnd + 1
			continue
		}
		closeAt += openEnd

		return tagName, s[openEnd+1 : closeAt], closeAt + len(closing)
	}
	return "", "", -1
}

func isTagNameByte(b byte, first bool) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_':
		return true
	case first:
		return false
	case b >= '0' && b <= '9', b == ':', b == '-':
		return true
	}
	return false
}

// normalizeFieldName lower-cases a tag name and folds namespace colons and
// dashes into underscores.
func normalizeFieldName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

// hasIdentity reports whether the record carries a title or any id-like
// field. Records without either are unusable downstream and are dropped
// at the source.
func (r RawRecord) hasIdentity() bool {
	for _, f := range titleAliases {
		if _, ok := r[f]; ok {
			return true
		}
	}
	for _, f := range idAliases {
		if _, ok := r[f]; ok {
			return true
		}
	}
	return false
}

// clip bounds a raw value before text cleanup so a single runaway field can
// not blow up the staged chunk payload.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
