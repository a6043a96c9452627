// Package api provides the operations HTTP surface for the SISEOA core.
//
// It exposes read views over the topology, device states, building
// automation states, mined rules, and daily usage, plus the small set of
// write operations an operator needs: switching a device, applying a
// building mode, enabling a rule, and firing the maintenance triggers.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// There is no authentication; the API binds to the site's internal
// network and trusts it, like the device controllers do.
package api
