package collision

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Capability is a single collision-policy flag carried by a body.
type Capability uint32

const (
	// IgnoredByVehicles marks bodies that vehicles pass through.
	IgnoredByVehicles Capability = 1 << iota
	// BridgeCollisionHandler marks bridge pieces that react to vehicle hits.
	BridgeCollisionHandler
	// PlayerCollisionHandler marks player-controlled bodies that react to vehicle hits.
	PlayerCollisionHandler
	// Carrier marks bodies that other vehicles can ride on.
	Carrier
)

var capabilityNames = map[Capability]string{
	IgnoredByVehicles:      "ignored_by_vehicles",
	BridgeCollisionHandler: "bridge_collision_handler",
	PlayerCollisionHandler: "player_collision_handler",
	Carrier:                "carrier",
}

// ParseCapability resolves a capability by its JSON name.
func ParseCapability(name string) (Capability, error) {
	for c, n := range capabilityNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

// String returns the JSON name of the capability.
func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return fmt.Sprintf("capability(%d)", uint32(c))
}

// MarshalText encodes the capability by name.
func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a capability name.
func (c *Capability) UnmarshalText(text []byte) error {
	parsed, err := ParseCapability(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Set is a bitset of capabilities.
type Set uint32

// NewSet builds a set from the given capabilities.
func NewSet(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s |= Set(c)
	}
	return s
}

// Has reports whether c is in the set.
func (s Set) Has(c Capability) bool {
	return s&Set(c) != 0
}

// HasAny reports whether the sets share at least one capability.
func (s Set) HasAny(other Set) bool {
	return s&other != 0
}

// With returns a copy of the set including c.
func (s Set) With(c Capability) Set {
	return s | Set(c)
}

// Names lists the capability names in the set, sorted.
func (s Set) Names() []string {
	names := make([]string, 0, len(capabilityNames))
	for c, n := range capabilityNames {
		if s.Has(c) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func (s Set) String() string {
	return strings.Join(s.Names(), ",")
}

// MarshalJSON encodes the set as a list of capability names.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of capability names.
func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out Set
	for _, n := range names {
		c, err := ParseCapability(n)
		if err != nil {
			return err
		}
		out = out.With(c)
	}
	*s = out
	return nil
}
