package sensor

import "fmt"

// Precedence is an ordered list of categories, highest first. Entity types
// declare it explicitly because vehicle kinds disagree on the order.
type Precedence []Category

// Validate rejects duplicates, empty entries and None.
func (p Precedence) Validate() error {
	seen := make(map[Category]bool, len(p))
	for _, c := range p {
		if c == "" || c == None {
			return fmt.Errorf("precedence: invalid category %q", c)
		}
		if seen[c] {
			return fmt.Errorf("precedence: duplicate category %q", c)
		}
		seen[c] = true
	}
	return nil
}

// Rank returns the priority of c: higher wins, zero if c is not listed.
func (p Precedence) Rank(c Category) int {
	for i, cat := range p {
		if cat == c {
			return len(p) - i
		}
	}
	return 0
}

// Apply returns a copy of points with priorities taken from the precedence.
// Points whose category is not listed keep priority zero.
func (p Precedence) Apply(points []DetectionPoint) []DetectionPoint {
	out := make([]DetectionPoint, len(points))
	for i, pt := range points {
		pt.Priority = p.Rank(pt.Category)
		out[i] = pt
	}
	return out
}
