// Package engine is the boundary to the FIX protocol engine.
//
// Engine is what the rest of the bridge depends on: open and close every
// session, look a session up, parse raw FIX text and send. QuickFIX
// implements it on a QuickFIX/Go initiator built from the configuration file
// written by config.Assemble. Each OpenAll builds a fresh initiator, so the
// sessions can be stopped and started any number of times.
//
// Application is the quickfix.Application handed to the initiator. Every
// message crossing a session is echoed: incoming messages as FIRST,
// outgoing ones as SECOND. Each echo carries the session alias and the next
// sequence for that alias and direction, and is published as a one-message
// batch on "<subject>.first" or "<subject>.second". Echoes go through a
// bounded worker pool (Echoer); when it is full the echo is dropped and
// counted.
//
// QuickFIX session logs are written to slog through NewLogFactory.
package engine
