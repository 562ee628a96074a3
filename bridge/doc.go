// Package bridge implements the control side of the worker protocol.
//
// A [Bridge] owns the writing end of a [mailbox.Mailbox], and the receiving
// end of a [protocol.Channel]. All of its state is confined to a single
// event loop goroutine (see [Loop]), and every exported method is safe to
// call from any goroutine, marshaling onto the loop via Submit.
//
// # Events
//
// Input events (keys, resizes, dropped files, commands) are written into the
// mailbox strictly one at a time. Events are queued, in the order they were
// submitted, and the next event is only written once the compute side
// acknowledges the current one, by posting a done message. Acknowledgements
// for anything other than the in-flight event are fatal.
//
// # Requests
//
// Some events expect a reply message, e.g. a shared buffer allocation, or the
// result of a command. Replies are correlated by message kind, and at most
// one request per kind is outstanding at a time. Further requests of the same
// kind wait their turn.
//
// # Termination
//
// Protocol violations, and errors reported by the compute side, terminate the
// bridge. Termination closes the channel, and fails all queued and pending
// work with an error wrapping [ErrTerminated].
package bridge
