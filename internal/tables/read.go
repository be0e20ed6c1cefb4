// Package tables reads the sample, phenotype and kinship tables and writes
// the retained-individual table.
//
// Tables are headerless and space-delimited; tab-delimited files are
// detected and accepted. Malformed lines are skipped and counted rather than
// failing the whole read.
package tables

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/csimplestring/go-csv/detector"

	"github.com/hurou927/kin-subset/internal/cohort"
)

// maxExamples bounds how many RecordFormatErrors a Stats keeps verbatim.
const maxExamples = 5

// RecordFormatError describes a skipped line.
type RecordFormatError struct {
	Table  string
	Line   int
	Text   string
	Reason string
}

func (e *RecordFormatError) Error() string {
	return fmt.Sprintf("%s line %d: %s: %q", e.Table, e.Line, e.Reason, e.Text)
}

// Stats summarizes one table read.
type Stats struct {
	Table        string
	Lines        int // non-empty lines, header included
	Records      int
	Header       bool
	Duplicates   int // phenotype rows repeating an IID, first row kept
	FormatErrors int
	Examples     []*RecordFormatError
}

func (s *Stats) reject(line int, text, reason string) {
	s.FormatErrors++
	if len(s.Examples) < maxExamples {
		s.Examples = append(s.Examples, &RecordFormatError{Table: s.Table, Line: line, Text: text, Reason: reason})
	}
}

// scanner yields the fields of each non-empty line, split on the detected
// delimiter.
type scanner struct {
	sc     *bufio.Scanner
	split  func(rune) bool
	lineno int
	text   string
}

func newScanner(r io.Reader) *scanner {
	br := bufio.NewReaderSize(r, 64*1024)
	sample, _ := br.Peek(16 * 1024)

	delim := DetectDelimiter(sample)
	split := func(c rune) bool { return c == ' ' || c == '\t' }
	if delim == '\t' {
		split = func(c rune) bool { return c == '\t' }
	}

	sc := bufio.NewScanner(br)
	// kinship tables can be large but lines are short; allow long IDs anyway
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &scanner{sc: sc, split: split}
}

func (s *scanner) next() ([]string, bool) {
	for s.sc.Scan() {
		s.lineno++
		s.text = strings.TrimRight(s.sc.Text(), "\r")
		fields := strings.FieldsFunc(s.text, s.split)
		if len(fields) == 0 {
			continue
		}
		return fields, true
	}
	return nil, false
}

func (s *scanner) err() error {
	if err := s.sc.Err(); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// DetectDelimiter returns '\t' when sample looks tab-delimited and ' '
// otherwise.
func DetectDelimiter(sample []byte) rune {
	if len(sample) == 0 {
		return ' '
	}
	// drop a trailing partial line so the detector sees whole records
	if i := bytes.LastIndexByte(sample, '\n'); i > 0 {
		sample = sample[:i+1]
	}

	d := detector.New()
	for _, cand := range d.DetectDelimiter(bytes.NewReader(sample), '"') {
		if cand == "\t" {
			return '\t'
		}
		if cand == " " {
			return ' '
		}
	}
	return ' '
}

// ReadSamples reads a sample table (FID IID).
func ReadSamples(r io.Reader) ([]cohort.SampleRecord, Stats, error) {
	stats := Stats{Table: "samples"}
	var out []cohort.SampleRecord

	sc := newScanner(r)
	for {
		fields, ok := sc.next()
		if !ok {
			break
		}
		stats.Lines++
		if len(fields) != 2 {
			stats.reject(sc.lineno, sc.text, fmt.Sprintf("expected 2 fields, got %d", len(fields)))
			continue
		}
		out = append(out, cohort.SampleRecord{FID: fields[0], IID: fields[1]})
		stats.Records++
	}

	return out, stats, sc.err()
}

// ReadPhenotypes reads a phenotype table (FID IID value) into an IID ->
// value map. The first row for an IID wins.
func ReadPhenotypes(r io.Reader) (map[string]string, Stats, error) {
	stats := Stats{Table: "phenotypes"}
	out := make(map[string]string)

	sc := newScanner(r)
	for {
		fields, ok := sc.next()
		if !ok {
			break
		}
		stats.Lines++
		if len(fields) != 3 {
			stats.reject(sc.lineno, sc.text, fmt.Sprintf("expected 3 fields, got %d", len(fields)))
			continue
		}
		if _, seen := out[fields[1]]; seen {
			stats.Duplicates++
			continue
		}
		out[fields[1]] = fields[2]
		stats.Records++
	}

	return out, stats, sc.err()
}

// kinshipLayout locates the columns of a kinship table.
type kinshipLayout struct {
	fields int
	id1    int
	id2    int
	metric int
}

var plainKinship = kinshipLayout{fields: 3, id1: 0, id2: 1, metric: 2}

// headerLayout interprets a header line such as the UK Biobank
// "ID1 ID2 HetHet IBS0 Kinship". ok is false if fields is not a header.
func headerLayout(fields []string) (kinshipLayout, bool) {
	l := kinshipLayout{fields: len(fields), id1: -1, id2: -1, metric: -1}
	if _, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
		return l, false
	}
	for i, f := range fields {
		switch {
		case strings.EqualFold(f, "ID1"), strings.EqualFold(f, "IID1"):
			l.id1 = i
		case strings.EqualFold(f, "ID2"), strings.EqualFold(f, "IID2"):
			l.id2 = i
		case strings.EqualFold(f, "Kinship"):
			l.metric = i
		}
	}
	if l.id1 < 0 || l.id2 < 0 {
		return l, false
	}
	if l.metric < 0 {
		l.metric = len(fields) - 1
	}
	return l, true
}

// ReadKinship reads a kinship table (IID1 IID2 metric). A leading header
// line naming the columns, as in the UK Biobank relatedness file, is
// recognized and used to locate the ID and kinship columns.
func ReadKinship(r io.Reader) ([]cohort.KinshipRecord, Stats, error) {
	stats := Stats{Table: "kinship"}
	var out []cohort.KinshipRecord

	layout := plainKinship
	sc := newScanner(r)
	for {
		fields, ok := sc.next()
		if !ok {
			break
		}
		stats.Lines++

		if stats.Lines == 1 {
			if hl, isHeader := headerLayout(fields); isHeader {
				layout = hl
				stats.Header = true
				continue
			}
		}

		if len(fields) != layout.fields {
			stats.reject(sc.lineno, sc.text, fmt.Sprintf("expected %d fields, got %d", layout.fields, len(fields)))
			continue
		}
		metric, err := parseMetric(fields[layout.metric])
		if err != nil {
			stats.reject(sc.lineno, sc.text, err.Error())
			continue
		}
		out = append(out, cohort.KinshipRecord{IID1: fields[layout.id1], IID2: fields[layout.id2], Metric: metric})
		stats.Records++
	}

	return out, stats, sc.err()
}

func parseMetric(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("metric %q is not a finite number", s)
	}
	return v, nil
}

// ReadIDs reads one individual per line and returns the IIDs in file order.
// Lines may hold just an IID or "FID IID ..." as in a PLINK .fam file, in
// which case the second field is used.
func ReadIDs(r io.Reader) ([]string, Stats, error) {
	stats := Stats{Table: "ids"}
	var out []string

	sc := newScanner(r)
	for {
		fields, ok := sc.next()
		if !ok {
			break
		}
		stats.Lines++
		if len(fields) == 1 {
			out = append(out, fields[0])
		} else {
			out = append(out, fields[1])
		}
		stats.Records++
	}

	return out, stats, sc.err()
}
