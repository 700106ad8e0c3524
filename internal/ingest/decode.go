package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Schema describes a positional delimited extract.
type Schema struct {
	Columns   []string
	Delimiter rune
	// Quoting enables CSV quote handling. Extracts produced with quoting
	// disabled are split on the delimiter only.
	Quoting bool
	// Header means the first record names the columns instead of Columns.
	Header bool
}

// decodeLatin1 converts ISO-8859-1 bytes into UTF-8.
func decodeLatin1(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode latin-1: %w", err)
	}
	return out, nil
}

// readRecords splits a Latin-1 extract into records of exactly len(schema.Columns)
// fields (short records are padded, extra fields dropped). Blank lines are skipped.
// With schema.Header set, the header record is returned separately and records
// keep their natural width.
func readRecords(data []byte, schema Schema) (header []string, records [][]string, err error) {
	utf8Data, err := decodeLatin1(data)
	if err != nil {
		return nil, nil, err
	}
	utf8Data = bytes.TrimPrefix(utf8Data, []byte("\xef\xbb\xbf"))

	var raw [][]string
	if schema.Quoting {
		raw, err = readQuoted(utf8Data, schema.Delimiter)
	} else {
		raw, err = readUnquoted(utf8Data, schema.Delimiter)
	}
	if err != nil {
		return nil, nil, err
	}

	if schema.Header {
		if len(raw) == 0 {
			return nil, nil, errors.New("missing header row")
		}
		return raw[0], raw[1:], nil
	}

	width := len(schema.Columns)
	records = make([][]string, 0, len(raw))
	for _, rec := range raw {
		if len(rec) < width {
			padded := make([]string, width)
			copy(padded, rec)
			rec = padded
		}
		records = append(records, rec[:width])
	}
	return nil, records, nil
}

func readQuoted(data []byte, delim rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	var out [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read delimited record: %w", err)
		}
		if blank(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func readUnquoted(data []byte, delim rune) ([][]string, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	sep := string(delim)

	var out [][]string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, strings.Split(line, sep))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan delimited lines: %w", err)
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// number coerces a cell to float64; anything unparseable is 0.
func number(cell string) float64 {
	v, ok := parseNumber(cell)
	if !ok {
		return 0
	}
	return v
}

// parseNumber parses a plain decimal cell, reporting whether it was numeric.
func parseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func integer(cell string) int {
	return int(number(cell))
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"20060102",
}

// date parses a cell leniently; unparseable cells yield the zero time.
func date(cell string) time.Time {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func text(cell string) string {
	return strings.TrimSpace(cell)
}
