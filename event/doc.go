// Package event builds the reporting events the bridge publishes to NATS.
//
// At startup the process stores one root event of type Microservice named
// after every session alias and the start time. Failures to handle an
// inbound message group are stored as Error events under it, carrying the
// group as JSON in the name, the error chain in the body, and the ids of the
// group's messages. Session lifecycle changes are stored as Info events.
package event
