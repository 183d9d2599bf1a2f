// Package api defines the value types shared by every layer of the fragend
// client: operations and request contexts, the protocol error taxonomy,
// stream event kinds with their payload decoders, the assembled response
// model, and the session state machine.
//
// The package has no transport or middleware dependencies; everything here
// is plain data plus pure functions over it.
package api
