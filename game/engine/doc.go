// Package engine coordinates the vehicles of one scenario, one fixed step at a time.
//
// Every tick, for each living entity in spawn order, the engine:
//   - classifies what the entity stands on from its detection points
//   - maps the classification to animation flags and the death-counts flag
//   - pushes the flags to the entity's animator
//   - runs the interaction checks whose cooldown expired, applying ignore
//     decisions on first contact and dispatching the rest by capability
//   - advances the launcher's timed launch/reload sequence
//
// Consumers of a tick always observe that tick's classification.
//
// Usage:
//
//	scenario, err := engine.LoadScenario("configs/default.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	eng, err := engine.NewEngine(scenario, zerolog.Nop(), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	events, err := eng.Step(10)
//	state := eng.GetState()
//
// Precedence between surface categories is declared per entity type: a guard
// on a carriage prefers the carrier, a car guard prefers the ground.
package engine
