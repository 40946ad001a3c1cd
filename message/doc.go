// Package message defines the queue wire model exchanged with the bridge:
// batches of message groups, each group carrying raw or parsed messages
// tagged with a connection id, direction, and sequence.
//
// Batches travel as JSON by default. Publishers that set the Content-Type
// header to application/cbor get CBOR encoding with the same field names:
//
//	batch := message.ToBatch(body, message.ConnectionID{SessionAlias: "client1"}, message.DirectionSecond, seq, now)
//	data, err := message.Encode(batch, message.ContentTypeCBOR)
package message
