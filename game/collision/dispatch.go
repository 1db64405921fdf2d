package collision

// Contact describes one body reached by an interaction check.
type Contact struct {
	Self       string     `json:"self"`
	Other      string     `json:"other"`
	ColliderID string     `json:"collider_id"`
	Capability Capability `json:"capability"`
	Point      string     `json:"point"`
}

// Handler reacts to a contact routed by capability.
type Handler func(Contact)

// Dispatcher routes interaction hits to the handlers registered for the owner's capabilities.
type Dispatcher struct {
	filter   *Filter
	physics  Physics
	order    []Capability
	handlers map[Capability]Handler
}

// NewDispatcher creates a dispatcher that consults filter before routing.
func NewDispatcher(filter *Filter, physics Physics) *Dispatcher {
	return &Dispatcher{
		filter:   filter,
		physics:  physics,
		handlers: make(map[Capability]Handler),
	}
}

// Handle registers h for bodies carrying c. Capabilities are tried in registration order.
func (d *Dispatcher) Handle(c Capability, h Handler) {
	if _, ok := d.handlers[c]; !ok {
		d.order = append(d.order, c)
	}
	d.handlers[c] = h
}

// Dispatch routes the colliders hit at one detection point. Each owner is dispatched at most
// once per call; self, unknown and ignored colliders are skipped. Returns the number of
// handlers invoked.
func (d *Dispatcher) Dispatch(point string, colliders []string) int {
	if d == nil || d.physics == nil {
		return 0
	}
	self := ""
	if d.filter != nil {
		self = d.filter.self
	}

	seen := make(map[string]bool, len(colliders))
	dispatched := 0
	for _, id := range colliders {
		if id == "" {
			continue
		}
		owner, ok := d.physics.OwnerOf(id)
		if !ok || owner == self || seen[owner] {
			continue
		}
		seen[owner] = true
		if d.filter.ShouldIgnore(id) {
			continue
		}

		caps := d.physics.CapabilitiesOf(owner)
		for _, c := range d.order {
			if !caps.Has(c) {
				continue
			}
			d.handlers[c](Contact{
				Self:       self,
				Other:      owner,
				ColliderID: id,
				Capability: c,
				Point:      point,
			})
			dispatched++
			break
		}
	}
	return dispatched
}
