// Package listener consumes the inbound MQTT change streams.
//
// Four streams feed the core: device controller status reports, remote
// device intents, remote building intents, and topology announcements,
// plus one-shot maintenance triggers. Handlers parse and validate the
// payload, then dispatch to the owning component; they never mutate
// shared state directly.
//
//	siseoa/status/+           controller-side switches, OFFLINE marks
//	siseoa/intent/device/+    remote ON/OFF requests
//	siseoa/intent/building/+  remote mode requests
//	siseoa/topology           device add/modify/remove announcements
//	siseoa/trigger/+          regenerate-rules, clear-history,
//	                          refresh-topology
//
// Remote intents are suppressed while the connectivity guard reports the
// stores unhealthy. A remote ON rejected by a lock or an offline
// controller is answered by republishing the authoritative retained
// status, overwriting whatever the remote client wrote.
package listener
