package constraints

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind tags the form of a constraint.
type Kind int

const (
	Equality  Kind = iota // x[t,n] = v
	Interval              // lo ≤ x[t,n] ≤ hi
	Exclusion             // bad-interval bound around a sent value
	Symbolic              // lo ≤ Σ coef·x[t,n] ≤ hi
)

func (k Kind) String() string {
	switch k {
	case Equality:
		return "equality"
	case Interval:
		return "interval"
	case Exclusion:
		return "exclusion"
	case Symbolic:
		return "symbolic"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Term is one coefficient of a symbolic constraint. Epoch and Node are
// 0-based.
type Term struct {
	Coef  float64
	Epoch int
	Node  int
}

// Constraint is one verification constraint on the true readings. Epoch
// and Node are 0-based and name the constrained reading; for Symbolic
// constraints they repeat Terms[0], which always has coefficient 1.
type Constraint struct {
	Kind  Kind
	Epoch int
	Node  int
	Value float64 // Equality only
	Lower float64
	Upper float64
	Terms []Term // Symbolic only
}

// NewEquality returns x[epoch,node] = v.
func NewEquality(epoch, node int, v float64) Constraint {
	return Constraint{Kind: Equality, Epoch: epoch, Node: node, Value: v, Lower: v, Upper: v}
}

// NewInterval returns v−tol ≤ x[epoch,node] ≤ v+tol.
func NewInterval(epoch, node int, v, tol float64) Constraint {
	return Constraint{Kind: Interval, Epoch: epoch, Node: node, Lower: v - tol, Upper: v + tol}
}

// NewExclusion returns the bad-interval bound around a sent value.
func NewExclusion(epoch, node int, v, tol float64) Constraint {
	return Constraint{Kind: Exclusion, Epoch: epoch, Node: node, Lower: v - tol, Upper: v + tol}
}

// NewSymbolic returns lower ≤ x[epoch,node] + Σ others ≤ upper.
func NewSymbolic(epoch, node int, lower, upper float64, others ...Term) Constraint {
	terms := make([]Term, 0, len(others)+1)
	terms = append(terms, Term{Coef: 1, Epoch: epoch, Node: node})
	terms = append(terms, others...)
	return Constraint{Kind: Symbolic, Epoch: epoch, Node: node, Lower: lower, Upper: upper, Terms: terms}
}

// Remap returns c with every node index i replaced by ids[i].
func (c Constraint) Remap(ids []int) Constraint {
	c.Node = ids[c.Node]
	if c.Terms != nil {
		terms := make([]Term, len(c.Terms))
		for i, t := range c.Terms {
			t.Node = ids[t.Node]
			terms[i] = t
		}
		c.Terms = terms
	}
	return c
}

// String renders the tagged line format with 1-based epochs and nodes.
func (c Constraint) String() string {
	switch c.Kind {
	case Equality:
		return fmt.Sprintf("0:x[%d,%d] = %f", c.Epoch+1, c.Node+1, c.Value)
	case Interval:
		return fmt.Sprintf("1:%d,%d,%f,%f", c.Epoch+1, c.Node+1, c.Lower, c.Upper)
	case Exclusion:
		return fmt.Sprintf("2:%d,%d,%f,%f", c.Epoch+1, c.Node+1, c.Lower, c.Upper)
	case Symbolic:
		var b strings.Builder
		b.WriteString("3:")
		b.WriteString(formatBound(c.Lower))
		b.WriteByte(';')
		b.WriteString(formatBound(c.Upper))
		for i, t := range c.Terms {
			if i == 0 {
				fmt.Fprintf(&b, ";1,%d,%d", t.Epoch+1, t.Node+1)
				continue
			}
			fmt.Fprintf(&b, ";%f,%d,%d", t.Coef, t.Epoch+1, t.Node+1)
		}
		return b.String()
	}
	return fmt.Sprintf("#invalid constraint kind %d", int(c.Kind))
}

// formatBound renders a symbolic bound as the shortest decimal that round
// trips, always with a fractional digit, switching to an exponent outside
// [1e-3, 1e7).
func formatBound(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if a := math.Abs(v); a == 0 || (a >= 1e-3 && a < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(v, 'E', -1, 64)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	e, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(e)
}

// Parse decodes one tagged constraint line.
func Parse(line string) (Constraint, error) {
	line = strings.TrimSpace(line)
	tag, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Constraint{}, fmt.Errorf("missing tag in %q", line)
	}
	switch tag {
	case "0":
		var t, n int
		var v float64
		if _, err := fmt.Sscanf(rest, "x[%d,%d] = %g", &t, &n, &v); err != nil {
			return Constraint{}, fmt.Errorf("malformed equality %q: %w", line, err)
		}
		return NewEquality(t-1, n-1, v), nil
	case "1", "2":
		f := strings.Split(rest, ",")
		if len(f) != 4 {
			return Constraint{}, fmt.Errorf("malformed bound %q", line)
		}
		t, n, err := parseEpochNode(f[0], f[1])
		if err != nil {
			return Constraint{}, err
		}
		lo, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return Constraint{}, fmt.Errorf("malformed lower bound in %q: %w", line, err)
		}
		hi, err := strconv.ParseFloat(f[3], 64)
		if err != nil {
			return Constraint{}, fmt.Errorf("malformed upper bound in %q: %w", line, err)
		}
		kind := Interval
		if tag == "2" {
			kind = Exclusion
		}
		return Constraint{Kind: kind, Epoch: t, Node: n, Lower: lo, Upper: hi}, nil
	case "3":
		f := strings.Split(rest, ";")
		if len(f) < 3 {
			return Constraint{}, fmt.Errorf("malformed symbolic constraint %q", line)
		}
		lo, err := strconv.ParseFloat(f[0], 64)
		if err != nil {
			return Constraint{}, fmt.Errorf("malformed left bound in %q: %w", line, err)
		}
		hi, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return Constraint{}, fmt.Errorf("malformed right bound in %q: %w", line, err)
		}
		terms := make([]Term, 0, len(f)-2)
		for _, tf := range f[2:] {
			p := strings.Split(tf, ",")
			if len(p) != 3 {
				return Constraint{}, fmt.Errorf("malformed term %q in %q", tf, line)
			}
			coef, err := strconv.ParseFloat(p[0], 64)
			if err != nil {
				return Constraint{}, fmt.Errorf("malformed coefficient in %q: %w", line, err)
			}
			t, n, err := parseEpochNode(p[1], p[2])
			if err != nil {
				return Constraint{}, err
			}
			terms = append(terms, Term{Coef: coef, Epoch: t, Node: n})
		}
		return Constraint{Kind: Symbolic, Epoch: terms[0].Epoch, Node: terms[0].Node, Lower: lo, Upper: hi, Terms: terms}, nil
	}
	return Constraint{}, fmt.Errorf("unknown constraint tag %q", tag)
}

func parseEpochNode(ts, ns string) (int, int, error) {
	t, err := strconv.Atoi(strings.TrimSpace(ts))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed epoch %q: %w", ts, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(ns))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed node %q: %w", ns, err)
	}
	return t - 1, n - 1, nil
}

// Encoder writes constraints as tagged lines.
type Encoder struct {
	w     io.Writer
	count int
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one line per constraint.
func (e *Encoder) Encode(cs ...Constraint) error {
	for _, c := range cs {
		if _, err := io.WriteString(e.w, c.String()+"\n"); err != nil {
			return fmt.Errorf("failed to write constraint: %w", err)
		}
		e.count++
	}
	return nil
}

// Count returns the number of constraints written so far.
func (e *Encoder) Count() int { return e.count }
