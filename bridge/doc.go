// Package bridge moves business messages from the inbound queue into FIX
// sessions.
//
// Each batch is handled group by group. A group must hold exactly one raw
// message; anything else is skipped with an error log. The message's
// session alias selects the session, the body is parsed by the engine with
// that session's dictionary and sent. Unknown aliases, stopped sessions,
// parse and send errors, and engine panics each fail only their own
// group: the failure is logged and stored as an event under the root event.
// Messages are never retried.
//
// With StartOnTraffic the first batch to arrive while stopped starts the
// sessions.
package bridge
