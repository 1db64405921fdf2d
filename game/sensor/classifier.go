package sensor

// Classifier derives a single category from a fixed set of detection points.
// It is not safe for concurrent use: the overlap buffer is scratch space
// reused by every query.
type Classifier struct {
	points []DetectionPoint
	query  OverlapQuery
	buf    [MaxOverlapResults]Hit
}

// NewClassifier creates a classifier over points. The slice is copied.
func NewClassifier(query OverlapQuery, points []DetectionPoint) *Classifier {
	return &Classifier{
		points: append([]DetectionPoint(nil), points...),
		query:  query,
	}
}

// Points returns the configured detection points.
func (c *Classifier) Points() []DetectionPoint {
	return c.points
}

// Classify queries every detection point once and returns the highest-priority
// matching category. Ties go to the point declared first. With no match the
// category is None.
func (c *Classifier) Classify(t Transform) Result {
	result := Result{Category: None}
	if c == nil || c.query == nil {
		return result
	}

	best := -1
	for i := range c.points {
		p := &c.points[i]
		if !c.matches(t, p) {
			continue
		}
		result.Matched = append(result.Matched, p.Name)
		if best < 0 || p.Priority > c.points[best].Priority {
			best = i
		}
	}

	if best >= 0 {
		result.Category = c.points[best].Category
		result.Point = c.points[best].Name
	}
	return result
}

func (c *Classifier) matches(t Transform, p *DetectionPoint) bool {
	if p.Radius <= 0 || len(p.Tags) == 0 {
		return false
	}

	n := c.query.OverlapSphere(t.WorldPoint(p.Offset), p.Radius, p.Mask, c.buf[:])
	if n > len(c.buf) {
		n = len(c.buf)
	}
	matched := false
	for i := 0; i < n && !matched; i++ {
		matched = hasAnyTag(c.buf[i].Tags, p.Tags)
	}
	clear(c.buf[:n])
	return matched
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
