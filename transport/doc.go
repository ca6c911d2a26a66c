// Package transport ships a reference core.Scheduler: a worker-pool command
// executor over persistent WebSocket connections, one per peer address.
//
// Commands are wrapped in a correlation envelope {"id": <handle>, "body":
// <command>} and peers echo the same id on their reply, so any number of
// commands can be in flight per connection. Sends run on a shared goroutine
// pool; a dedicated reader goroutine per connection dispatches replies to the
// pending callbacks. Callbacks are therefore never invoked on the caller's
// goroutine, as the Scheduler contract requires.
package transport
