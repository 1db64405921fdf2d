// Package collision decides which bodies a vehicle physically interacts with.
//
// Collision policy is expressed as an explicit capability set stored per body
// (IgnoredByVehicles, BridgeCollisionHandler, PlayerCollisionHandler, Carrier)
// instead of marker components probed at runtime.
//
// A Filter belongs to one spawned entity. ShouldIgnore evaluates the policy
// without side effects; ApplyIgnore pushes the decision into the physics layer
// for every collider of both owners and caches it, so repeated calls are
// no-ops. ApplyIgnoreToAllMarked runs once per spawn to pre-empt first-contact
// artifacts.
//
// A Dispatcher routes the results of an interaction check to handlers keyed by
// capability, skipping anything the filter ignores.
package collision
