// Package threshold turns a percentage signal into a deduplicated, ordered
// stream of threshold crossings for a single direction.
//
// A Sequencer is built for one epoch (the time between two direction
// changes). It walks its thresholds strictly forward: a threshold is taken
// from the sequence at most once and is never revisited, so a reading that
// moves back across a passed threshold cannot warn again. Building a new
// Sequencer is the only way to re-arm passed thresholds.
package threshold

import (
	"sort"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

// Sequencer tracks the next due threshold for one direction.
//
// A Sequencer is not safe for concurrent use.
type Sequencer struct {
	direction  powerinfo.Direction
	thresholds []int

	// cursor is the index of the threshold last taken from the sequence,
	// -1 before the first one. len(thresholds) means exhausted.
	cursor int

	nextDue    int
	armed      bool
	suppressed bool
}

// Result describes one evaluation.
type Result struct {
	// Fired is true when the reading crossed the next due threshold.
	Fired bool
	// Percentage is the live reading the warning reports. Only set when Fired.
	Percentage float64
	// Crossed is the threshold that was due when the warning fired.
	Crossed int
	// Skipped holds the thresholds consumed by catch-up, in traversal order.
	Skipped []int
	// NextDue is the threshold now due. Only meaningful when Armed.
	NextDue int
	Armed   bool
}

// Sort returns a copy of values in the traversal order of d: descending
// while discharging, ascending while charging.
func Sort(values []int, d powerinfo.Direction) []int {
	sorted := make([]int, len(values))
	copy(sorted, values)
	if d == powerinfo.Discharging {
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	} else {
		sort.Ints(sorted)
	}
	return sorted
}

// New builds a Sequencer over values for direction d. values need not be
// sorted. An empty set, or a direction other than Charging or Discharging,
// yields a Sequencer that never fires.
func New(values []int, d powerinfo.Direction) *Sequencer {
	s := &Sequencer{
		direction: d,
		cursor:    -1,
	}
	if d == powerinfo.Charging || d == powerinfo.Discharging {
		s.thresholds = Sort(values, d)
	}
	s.nextDue, s.armed = s.advance()
	return s
}

// advance takes the next threshold from the sequence. Once the sequence is
// exhausted it keeps returning false.
func (s *Sequencer) advance() (int, bool) {
	if s.cursor+1 >= len(s.thresholds) {
		s.cursor = len(s.thresholds)
		return 0, false
	}
	s.cursor++
	return s.thresholds[s.cursor], true
}

// crossed reports whether percentage has reached or passed w.
func (s *Sequencer) crossed(percentage float64, w int) bool {
	switch s.direction {
	case powerinfo.Discharging:
		return percentage <= float64(w)
	case powerinfo.Charging:
		return percentage >= float64(w)
	default:
		return false
	}
}

// Evaluate feeds one reading. When the next due threshold has been reached
// (inclusive) the result fires at the live percentage, and every following
// threshold the reading has also reached is consumed without firing again.
func (s *Sequencer) Evaluate(percentage float64) Result {
	if !s.armed {
		return Result{}
	}

	if !s.crossed(percentage, s.nextDue) {
		return Result{NextDue: s.nextDue, Armed: true}
	}

	res := Result{
		Fired:      true,
		Percentage: percentage,
		Crossed:    s.nextDue,
	}
	for {
		w, ok := s.advance()
		if !ok {
			s.armed = false
			s.nextDue = 0
			return res
		}
		if !s.crossed(percentage, w) {
			s.nextDue = w
			res.NextDue = w
			res.Armed = true
			return res
		}
		res.Skipped = append(res.Skipped, w)
	}
}

// SkipPast consumes, without firing, every threshold the percentage has
// already reached. It returns the consumed thresholds.
func (s *Sequencer) SkipPast(percentage float64) []int {
	var skipped []int
	for s.armed && s.crossed(percentage, s.nextDue) {
		skipped = append(skipped, s.nextDue)
		s.nextDue, s.armed = s.advance()
	}
	return skipped
}

// Suppress disarms the sequencer for the rest of its epoch without touching
// its position. It reports whether a threshold was armed.
func (s *Sequencer) Suppress() bool {
	wasArmed := s.armed
	if wasArmed {
		s.suppressed = true
	}
	s.armed = false
	s.nextDue = 0
	return wasArmed
}

// NextDue returns the threshold expected to be crossed next.
// ok is false once the sequence is exhausted or suppressed.
func (s *Sequencer) NextDue() (int, bool) {
	return s.nextDue, s.armed
}

func (s *Sequencer) Direction() powerinfo.Direction {
	return s.direction
}

// Suppressed reports whether Suppress disarmed a pending threshold.
func (s *Sequencer) Suppressed() bool {
	return s.suppressed
}

// Exhausted reports whether every threshold has been taken from the sequence.
func (s *Sequencer) Exhausted() bool {
	return s.cursor >= len(s.thresholds)
}

// Remaining returns the thresholds not yet taken from the sequence.
func (s *Sequencer) Remaining() []int {
	if s.Exhausted() {
		return nil
	}
	rest := make([]int, len(s.thresholds)-s.cursor-1)
	copy(rest, s.thresholds[s.cursor+1:])
	return rest
}

// Thresholds returns the full set in traversal order.
func (s *Sequencer) Thresholds() []int {
	out := make([]int, len(s.thresholds))
	copy(out, s.thresholds)
	return out
}
