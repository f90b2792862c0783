package feed

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"testing"
)

// chunkedReader yields at most chunk bytes per Read, to exercise records
// split across read boundaries.
type chunkedReader struct {
	data  []byte
	pos   int
	chunk int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func collectRecords(t *testing.T, doc string, recordTag string) []RawRecord {
	t.Helper()
	var records []RawRecord
	extractor := NewExtractor(recordTag)
	err := extractor.Run(strings.NewReader(doc), false, func(record RawRecord) bool {
		records = append(records, record)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestExtractorBasicDocument(t *testing.T) {
	doc := `<?xml version="1.0"?>
<jobs>
  <job>
    <title>Sviluppatore Backend</title>
    <company>Acme SRL</company>
    <city>Milano</city>
  </job>
  <job>
    <title>Commesso</title>
    <company>Negozio SPA</company>
  </job>
</jobs>`

	records := collectRecords(t, doc, "job")
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0]["title"] != "Sviluppatore Backend" {
		t.Errorf("Expected title 'Sviluppatore Backend', got '%s'", records[0]["title"])
	}
	if records[0]["company"] != "Acme SRL" {
		t.Errorf("Expected company 'Acme SRL', got '%s'", records[0]["company"])
	}
	if records[1]["title"] != "Commesso" {
		t.Errorf("Expected title 'Commesso', got '%s'", records[1]["title"])
	}
}

func TestExtractorTagBoundary(t *testing.T) {
	// The wrapper <jobs> must not be mistaken for a <job> record.
	doc := `<jobs><job><title>One</title></job></jobs>`
	records := collectRecords(t, doc, "job")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "One" {
		t.Errorf("Expected title 'One', got '%s'", records[0]["title"])
	}
}

func TestExtractorOpenTagAttributes(t *testing.T) {
	doc := `<job id="ABC-123" lang="it"><title>Operaio</title></job>`
	records := collectRecords(t, doc, "job")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["id"] != "ABC-123" {
		t.Errorf("Expected id 'ABC-123', got '%s'", records[0]["id"])
	}
	if records[0]["lang"] != "it" {
		t.Errorf("Expected lang 'it', got '%s'", records[0]["lang"])
	}
}

func TestExtractorFirstValueWins(t *testing.T) {
	doc := `<job><title>First</title><title>Second</title></job>`
	records := collectRecords(t, doc, "job")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "First" {
		t.Errorf("Expected first title to win, got '%s'", records[0]["title"])
	}
}

func TestExtractorFieldNameNormalization(t *testing.T) {
	doc := `<job><Title>X</Title><job-type>full time</job-type><ns:ref>9</ns:ref></job>`
	records := collectRecords(t, doc, "job")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "X" {
		t.Errorf("Expected normalized 'title' field, got record %v", records[0])
	}
	if records[0]["job_type"] != "full time" {
		t.Errorf("Expected 'job_type' field, got record %v", records[0])
	}
	if records[0]["ns_ref"] != "9" {
		t.Errorf("Expected 'ns_ref' field, got record %v", records[0])
	}
}

func TestExtractorCDATAAndMarkupInFields(t *testing.T) {
	doc := `<job><title><![CDATA[Cuoco & Aiuto Cuoco]]></title><description><p>Turni</p><p>serali</p></description></job>`
	records := collectRecords(t, doc, "job")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "Cuoco & Aiuto Cuoco" {
		t.Errorf("Expected cleaned title, got '%s'", records[0]["title"])
	}
	if records[0]["description"] != "Turni serali" {
		t.Errorf("Expected cleaned description, got '%s'", records[0]["description"])
	}
}

func TestExtractorSelfClosingFieldSkipped(t *testing.T) {
	doc := `<job><remote/><title>Grafico</title></job>`
	records := collectRecords(t, doc, "job")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if _, ok := records[0]["remote"]; ok {
		t.Error("Expected self-closing field to carry no value")
	}
	if records[0]["title"] != "Grafico" {
		t.Errorf("Expected title 'Grafico', got '%s'", records[0]["title"])
	}
}

func TestExtractorRecordWithoutIdentityDropped(t *testing.T) {
	doc := `<job><city>Roma</city></job><job><title>Valid</title></job>`
	records := collectRecords(t, doc, "job")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "Valid" {
		t.Errorf("Expected only the record with a title, got %v", records[0])
	}
}

func TestExtractorTruncatedTailDropped(t *testing.T) {
	doc := `<job><title>Complete</title></job><job><title>Cut off`
	records := collectRecords(t, doc, "job")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "Complete" {
		t.Errorf("Expected only the complete record, got '%s'", records[0]["title"])
	}
}

func TestExtractorSplitAcrossReads(t *testing.T) {
	var doc strings.Builder
	doc.WriteString("<jobs>")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&doc, "<job><title>Job %d</title><referencenumber>R%d</referencenumber></job>", i, i)
	}
	doc.WriteString("</jobs>")
	data := []byte(doc.String())

	// Every split size must yield the same records.
	for _, chunk := range []int{1, 3, 7, 64, 1024} {
		var records []RawRecord
		extractor := NewExtractor("job")
		err := extractor.Run(&chunkedReader{data: data, chunk: chunk}, false, func(record RawRecord) bool {
			records = append(records, record)
			return true
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 20 {
			t.Fatalf("Expected 20 records with chunk size %d, got %d", chunk, len(records))
		}
		for i, record := range records {
			expected := fmt.Sprintf("Job %d", i)
			if record["title"] != expected {
				t.Errorf("Chunk size %d: expected title '%s', got '%s'", chunk, expected, record["title"])
			}
		}
	}
}

func TestExtractorGzipStream(t *testing.T) {
	doc := `<jobs><job><title>Compressed</title></job></jobs>`

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	var records []RawRecord
	extractor := NewExtractor("job")
	err := extractor.Run(&buf, true, func(record RawRecord) bool {
		records = append(records, record)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "Compressed" {
		t.Errorf("Expected title 'Compressed', got '%s'", records[0]["title"])
	}
}

func TestExtractorInvalidGzip(t *testing.T) {
	extractor := NewExtractor("job")
	err := extractor.Run(strings.NewReader("not gzip at all"), true, func(RawRecord) bool { return true })
	if err == nil {
		t.Error("Expected error for invalid gzip stream")
	}
}

func TestExtractorEarlyStop(t *testing.T) {
	doc := `<job><title>A</title></job><job><title>B</title></job><job><title>C</title></job>`

	var records []RawRecord
	extractor := NewExtractor("job")
	err := extractor.Run(strings.NewReader(doc), false, func(record RawRecord) bool {
		records = append(records, record)
		return len(records) < 2
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("Expected early stop after 2 records, got %d", len(records))
	}
}

func TestExtractorOversizedRecordTrimmed(t *testing.T) {
	// One runaway record far over the buffer cap must not prevent later
	// records from being extracted.
	var doc strings.Builder
	doc.WriteString("<job><title>Before</title></job>")
	doc.WriteString("<job><title>Huge</title><description>")
	doc.WriteString(strings.Repeat("x", maxBufferBytes+keepTailBytes))
	// No closing tags: the oversized record is malformed on purpose.
	doc.WriteString("<job><title>After</title></job>")

	var titles []string
	extractor := NewExtractor("job")
	err := extractor.Run(&chunkedReader{data: []byte(doc.String()), chunk: readChunkBytes}, false, func(record RawRecord) bool {
		titles = append(titles, record["title"])
		return true
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(titles) == 0 || titles[0] != "Before" {
		t.Fatalf("Expected record before the oversized one, got %v", titles)
	}
	if titles[len(titles)-1] != "After" {
		t.Errorf("Expected record after the oversized one to survive, got %v", titles)
	}
}

func TestExtractorDefaultRecordTag(t *testing.T) {
	extractor := NewExtractor("")
	if extractor.recordTag != DefaultRecordTag {
		t.Errorf("Expected default record tag '%s', got '%s'", DefaultRecordTag, extractor.recordTag)
	}
}

func TestExtractorBoundedBufferOnLongStream(t *testing.T) {
	const recordCount = 100000

	var doc strings.Builder
	doc.WriteString("<jobs>")
	for i := 0; i < recordCount; i++ {
		fmt.Fprintf(&doc, "<job><title>Job %d</title><id>%d</id></job>", i, i)
	}
	doc.WriteString("</jobs>")

	extractor := NewExtractor("job")
	peak := 0
	extractor.observeBuffer = func(n int) {
		if n > peak {
			peak = n
		}
	}

	emitted := 0
	err := extractor.Run(strings.NewReader(doc.String()), false, func(record RawRecord) bool {
		emitted++
		return true
	})
	if err != nil {
		t.Fatal(err)
	}

	if emitted != recordCount {
		t.Errorf("Expected %d records, got %d", recordCount, emitted)
	}
	if peak > maxBufferBytes {
		t.Errorf("Expected peak buffer at most %d bytes, got %d (stream size %d)", maxBufferBytes, peak, doc.Len())
	}
	// Records drain as they arrive, so the buffer should stay near one read
	// chunk, nowhere near the window cap.
	if peak > 2*readChunkBytes {
		t.Errorf("Expected peak buffer near one read chunk (%d bytes), got %d", readChunkBytes, peak)
	}
}
