// Package transport opens the push-style event channel to the backend and
// performs the control calls of one question/answer exchange: register
// (open), ask (submit), stop, and feedback.
//
// The wire protocol is HTTP plus a server-sent event stream:
//
//	GET  /register-client?uuid={sessionId}       opens the event stream
//	POST /ask?uuid={sessionId}&sSearchMode=...   submits the question
//	GET  /stop?uuid={sessionId}                  idempotent teardown
//	POST /feedback?uuid={sessionId}              thumbs up/down
//
// Events arrive as "event: <name>\ndata: <payload>\n\n" frames and are
// dispatched to channel subscribers in wire arrival order.
package transport
