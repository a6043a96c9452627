// Package actuator turns switch requests into channel commands.
//
// Every path that changes a device's ON/OFF state funnels through here:
// remote intents, schedule rules, mode transitions, the operations API, and
// locally observed switches reported by controllers. The actuator checks the
// request against the device's reachability and the building's automation
// policy, drives the channel over MQTT, keeps the retained status topic
// current, appends to the event log, and notifies the energy accruer.
//
// # Switch flow
//
//	Switch(deviceID, ON)
//	    │ Authorize (building lock held until the switch completes)
//	    │ reachability check
//	    │ no-op if already ON
//	    │ publish channel command + retained status
//	    │ record event, start energy accrual
//	    └ release building lock
//
// ForceOff skips authorization: it exists for the state machine, which
// already holds the building lock when applying a mode.
package actuator
