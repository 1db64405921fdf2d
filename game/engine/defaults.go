package engine

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/wricardo/bridge-it-together/game/collision"
	"github.com/wricardo/bridge-it-together/game/sensor"
	"github.com/wricardo/bridge-it-together/game/state"
)

// Kinds shipped with the default scenario.
const (
	KindGuard    = "guard"
	KindCarGuard = "car_guard"
	KindRoyalCar = "royal_car"
)

// GuardType rides the royal car's carriage. A carriage beats ground.
func GuardType() EntityType {
	return EntityType{
		Kind:        KindGuard,
		Description: "Archer riding the royal carriage",
		Points: []sensor.DetectionPoint{
			{Name: "feet", Offset: mgl64.Vec3{0, -0.5, 0}, Radius: 0.25, Category: sensor.Ground, Tags: []string{"ground", "bridge"}},
			{Name: "carriage", Offset: mgl64.Vec3{0, -0.5, 0}, Radius: 0.3, Category: sensor.Carrier, Tags: []string{"carrier"}},
		},
		Precedence: sensor.Precedence{sensor.Carrier, sensor.Ground},
		Flags:      []string{"idle", "walking", "flying"},
		Mapping: state.Mapping{
			sensor.Carrier: {"idle"},
			sensor.Ground:  {"walking"},
			sensor.None:    {"flying"},
		},
		DeathRule: "!idle || walking || flying",
		Ignore:    collision.Policy{Capabilities: collision.NewSet(collision.IgnoredByVehicles)},
		Interactions: []InteractionPoint{
			{Name: "bow", Offset: mgl64.Vec3{0, 0, 0.6}, Radius: 0.4, Interval: 0.5, Targets: []collision.Capability{collision.PlayerCollisionHandler}},
		},
		Launcher:       &LauncherConfig{LaunchDuration: 0.3, ReloadDuration: 1.2},
		Tags:           []string{"guard"},
		ColliderRadius: 0.4,
	}
}

// CarGuardType drives its own car. Ground beats a carrier.
func CarGuardType() EntityType {
	return EntityType{
		Kind:        KindCarGuard,
		Description: "Guard driving a patrol car",
		Points: []sensor.DetectionPoint{
			{Name: "wheels", Offset: mgl64.Vec3{0, -0.6, 0}, Radius: 0.3, Category: sensor.Ground, Tags: []string{"ground", "bridge"}},
			{Name: "deck", Offset: mgl64.Vec3{0, -0.6, 0}, Radius: 0.35, Category: sensor.Carrier, Tags: []string{"carrier"}},
		},
		Precedence: sensor.Precedence{sensor.Ground, sensor.Carrier},
		Flags:      []string{"grounded", "carried", "flying"},
		Mapping: state.Mapping{
			sensor.Ground:  {"grounded"},
			sensor.Carrier: {"carried"},
			sensor.None:    {"flying"},
		},
		DeathRule: "grounded || flying",
		Ignore:    collision.Policy{Capabilities: collision.NewSet(collision.IgnoredByVehicles), Tags: []string{"debris"}},
		Interactions: []InteractionPoint{
			{Name: "bumper", Offset: mgl64.Vec3{0, 0, 1}, Radius: 0.5, Interval: 0.25, Targets: []collision.Capability{collision.PlayerCollisionHandler, collision.BridgeCollisionHandler}},
		},
		Tags:           []string{"vehicle"},
		ColliderRadius: 0.6,
	}
}

// RoyalCarType carries guards and only cares about being on the road.
func RoyalCarType() EntityType {
	return EntityType{
		Kind:        KindRoyalCar,
		Description: "Royal car with a carriage guards can ride",
		Points: []sensor.DetectionPoint{
			{Name: "wheels", Offset: mgl64.Vec3{0, -0.6, 0}, Radius: 0.3, Category: sensor.Ground, Tags: []string{"ground", "bridge"}},
		},
		Precedence: sensor.Precedence{sensor.Ground},
		Flags:      []string{"driving", "falling"},
		Mapping: state.Mapping{
			sensor.Ground: {"driving"},
			sensor.None:   {"falling"},
		},
		DeathRule: "falling",
		Ignore:    collision.Policy{Capabilities: collision.NewSet(collision.IgnoredByVehicles)},
		Interactions: []InteractionPoint{
			{Name: "front_axle", Offset: mgl64.Vec3{0, -0.6, 1}, Radius: 0.5, Interval: 1, Targets: []collision.Capability{collision.BridgeCollisionHandler}},
		},
		Capabilities:   collision.NewSet(collision.Carrier),
		Tags:           []string{"carrier", "vehicle"},
		ColliderRadius: 0.6,
	}
}

// DefaultScenario is used when no scenario file is available: a road, a bridge,
// a marker the vehicles drive through and a royal car with a guard on top.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name:        "default",
		Description: "Royal car crossing a bridge with a guard on its carriage",
		FixedStep:   DefaultFixedStep,
		Types:       []EntityType{GuardType(), CarGuardType(), RoyalCarType()},
		Bodies: []StaticBody{
			{
				ID:       "road",
				Position: mgl64.Vec3{0, -1, 0},
				Tags:     []string{"ground"},
				Colliders: []ColliderSpec{
					{ID: "road/slab", HalfExtents: mgl64.Vec3{20, 0.5, 5}},
				},
			},
			{
				ID:           "bridge",
				Position:     mgl64.Vec3{0, -0.9, 10},
				Capabilities: collision.NewSet(collision.BridgeCollisionHandler),
				Tags:         []string{"bridge"},
				Colliders: []ColliderSpec{
					{ID: "bridge/plank-1", Offset: mgl64.Vec3{0, 0, -2}, HalfExtents: mgl64.Vec3{2, 0.1, 2}},
					{ID: "bridge/plank-2", Offset: mgl64.Vec3{0, 0, 2}, HalfExtents: mgl64.Vec3{2, 0.1, 2}},
				},
			},
			{
				ID:           "checkpoint",
				Position:     mgl64.Vec3{5, 0, 0},
				Capabilities: collision.NewSet(collision.IgnoredByVehicles),
				Colliders: []ColliderSpec{
					{ID: "checkpoint/gate", Radius: 1},
				},
			},
		},
		Spawns: []SpawnSpec{
			{ID: "royal-1", Kind: KindRoyalCar, Position: mgl64.Vec3{0, 0.1, 0}},
			{ID: "guard-1", Kind: KindGuard, Position: mgl64.Vec3{0, 1.1, 0}},
		},
	}
}
