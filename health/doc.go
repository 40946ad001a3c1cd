// Package health tracks the health of the bridge's moving parts: the NATS
// connection, the inbound subscription, the session controller, and every
// FIX session.
//
// Three states are reported: healthy, degraded, and unhealthy. A FIX session
// that is configured but logged out while the bridge is running is degraded;
// a lost NATS connection is unhealthy.
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("nats", "connected")
//	monitor.UpdateDegraded("session.client1", "logged out")
//	agg := monitor.AggregateHealth("semstreams-fix")
//
// Messages derived from errors pass through a sanitizer that strips URLs,
// paths, addresses and credentials before they are exposed on /health.
package health
