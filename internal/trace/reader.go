package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/sensorbelief/internal/knowledge"
)

// maxLineBytes bounds a single trace or reading line.
const maxLineBytes = 1 << 20

// Reader decodes trace records line by line.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := ParseRecord(text)
		if err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read trace: %w", err)
	}
	return Record{}, io.EOF
}

// ReadAll decodes every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// ParseRecord decodes a single trace line.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Record{}, fmt.Errorf("expected epoch, cluster, head and at least one node, got %d fields", len(fields))
	}
	epoch, err := strconv.Atoi(fields[0])
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse epoch: %w", err)
	}
	cluster, err := strconv.Atoi(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse cluster: %w", err)
	}
	head, err := knowledge.ParseLinkType(fields[2])
	if err != nil {
		return Record{}, fmt.Errorf("head: %w", err)
	}

	nodes := fields[3:]
	rec := Record{
		Epoch:   epoch,
		Cluster: cluster,
		Head:    head,
		Links:   make([]knowledge.Interval, len(nodes)),
		Values:  make([]float64, len(nodes)),
		Status:  make([]knowledge.Status, len(nodes)),
	}
	for i, tok := range nodes {
		if err := parseNode(tok, i, &rec); err != nil {
			return Record{}, fmt.Errorf("node %d: %w", i, err)
		}
	}
	return rec, nil
}

func parseNode(tok string, i int, rec *Record) error {
	parts := strings.Split(tok, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return fmt.Errorf("malformed token %q: want link:begin:status[:value]", tok)
	}
	lt, err := knowledge.ParseLinkType(parts[0])
	if err != nil {
		return err
	}
	begin, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("failed to parse begin: %w", err)
	}
	sv, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("failed to parse status: %w", err)
	}
	status, err := knowledge.ParseStatus(sv)
	if err != nil {
		return err
	}

	value := math.NaN()
	if len(parts) == 4 && parts[3] != "-" {
		value, err = strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return fmt.Errorf("failed to parse value: %w", err)
		}
	}
	if status == knowledge.Known && math.IsNaN(value) {
		return fmt.Errorf("known status without value in %q", tok)
	}

	rec.Links[i] = knowledge.Interval{Type: lt, Begin: begin}
	rec.Status[i] = status
	rec.Values[i] = value
	return nil
}

// Format encodes rec in the trace line format.
func Format(rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d %s", rec.Epoch, rec.Cluster, rec.Head.String()[:1])
	for i := range rec.Status {
		fmt.Fprintf(&b, " %s:%d:%d", rec.Links[i].Type.String()[:1], rec.Links[i].Begin, int(rec.Status[i]))
		if !math.IsNaN(rec.Values[i]) {
			b.WriteString(":" + strconv.FormatFloat(rec.Values[i], 'g', -1, 64))
		}
	}
	return b.String()
}

// ReadReadings decodes a readings file: one line per epoch holding the
// true value of every node, separated by whitespace or commas.
func ReadReadings(r io.Reader, nodeCount int) ([][]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var out [][]float64
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != nodeCount {
			return nil, fmt.Errorf("line %d: %d values, want %d", line, len(fields), nodeCount)
		}
		row := make([]float64, nodeCount)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		out = append(out, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read readings: %w", err)
	}
	return out, nil
}
