// Package control exposes the lifecycle controller as a NATS micro service.
//
// The service registers two endpoints under a subject prefix:
//
//	<prefix>.start  {"stop_after": N}  starts the sessions, optionally
//	                                   stopping them after N seconds
//	<prefix>.stop                      stops the sessions
//
// Both reply with {"status": "SUCCESS"|"FAILURE", "message": "..."}.
// Expected outcomes such as "Already running" are FAILURE replies.
// Anything unexpected, including a panic, is answered with a micro error
// carrying code 500 and the cause as the description. Requests are handled
// one at a time.
package control
