package collision

import (
	"sort"

	"github.com/rs/zerolog"
)

// Physics is the slice of the host physics layer the filter needs.
type Physics interface {
	// OwnerOf returns the body owning a collider.
	OwnerOf(colliderID string) (string, bool)
	// CapabilitiesOf returns the capability set of a body.
	CapabilitiesOf(bodyID string) Set
	// TagsOf returns the tags of a body.
	TagsOf(bodyID string) []string
	// CollidersOf returns every collider owned by a body.
	CollidersOf(bodyID string) []string
	// Bodies returns the IDs of every body in the scene.
	Bodies() []string
	// IgnoreCollision suppresses collision response between two colliders.
	IgnoreCollision(a, b string)
}

// Policy lists what marks a body as ignorable for one entity type.
type Policy struct {
	Capabilities Set      `json:"capabilities,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Matches reports whether a body with the given capabilities and tags is ignorable.
func (p Policy) Matches(caps Set, tags []string) bool {
	if caps.HasAny(p.Capabilities) {
		return true
	}
	for _, want := range p.Tags {
		for _, have := range tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Filter owns the ignore decisions of one spawned entity.
type Filter struct {
	self    string
	policy  Policy
	physics Physics
	applied map[string]bool
	swept   bool
	log     zerolog.Logger
}

// NewFilter creates a filter for the body self.
func NewFilter(self string, policy Policy, physics Physics, log zerolog.Logger) *Filter {
	return &Filter{
		self:    self,
		policy:  policy,
		physics: physics,
		applied: make(map[string]bool),
		log:     log,
	}
}

// ShouldIgnore evaluates the static policy for the collider's owner without touching physics state.
func (f *Filter) ShouldIgnore(colliderID string) bool {
	if f == nil || f.physics == nil || colliderID == "" {
		return false
	}
	owner, ok := f.physics.OwnerOf(colliderID)
	if !ok {
		return false
	}
	return f.ownerIgnorable(owner)
}

func (f *Filter) ownerIgnorable(owner string) bool {
	if owner == f.self {
		return false
	}
	return f.policy.Matches(f.physics.CapabilitiesOf(owner), f.physics.TagsOf(owner))
}

// ApplyIgnore suppresses collisions between every collider of this entity and every
// collider of the hit collider's owner. It returns true only when new pairs were applied.
func (f *Filter) ApplyIgnore(colliderID string) bool {
	if !f.ShouldIgnore(colliderID) {
		return false
	}
	owner, _ := f.physics.OwnerOf(colliderID)
	return f.applyOwner(owner)
}

// ApplyIgnoreToAllMarked sweeps the scene once after spawn. Later calls return 0.
func (f *Filter) ApplyIgnoreToAllMarked() int {
	if f == nil || f.physics == nil || f.swept {
		return 0
	}
	f.swept = true

	count := 0
	for _, owner := range f.physics.Bodies() {
		if !f.ownerIgnorable(owner) {
			continue
		}
		if f.applyOwner(owner) {
			count++
		}
	}
	if count > 0 {
		f.log.Debug().Str("body", f.self).Int("owners", count).Msg("ignore sweep applied")
	}
	return count
}

// IsApplied reports whether the owner has already been filtered.
func (f *Filter) IsApplied(owner string) bool {
	return f.applied[owner]
}

// Forget drops the cached decision for an owner so the next ApplyIgnore recomputes it.
func (f *Filter) Forget(owner string) {
	delete(f.applied, owner)
}

// Applied lists the owners already filtered, sorted.
func (f *Filter) Applied() []string {
	owners := make([]string, 0, len(f.applied))
	for owner := range f.applied {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// Restore re-applies the ignore pairs for owners and marks the sweep state, without
// consulting the policy again. Owners that no longer exist are skipped.
func (f *Filter) Restore(owners []string, swept bool) {
	f.swept = swept
	for _, owner := range owners {
		if len(f.physics.CollidersOf(owner)) == 0 {
			continue
		}
		f.applyOwner(owner)
	}
}

// Swept reports whether the spawn sweep has run.
func (f *Filter) Swept() bool {
	return f.swept
}

func (f *Filter) applyOwner(owner string) bool {
	if f.applied[owner] {
		return false
	}
	mine := f.physics.CollidersOf(f.self)
	theirs := f.physics.CollidersOf(owner)
	for _, a := range mine {
		for _, b := range theirs {
			f.physics.IgnoreCollision(a, b)
		}
	}
	f.applied[owner] = true
	return true
}
