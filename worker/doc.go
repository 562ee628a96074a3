// Package worker implements the compute side of the bridge: a goroutine that
// blocks on the mailbox status word, decodes each event, drives an [Engine],
// and reports completion over the [protocol.Channel].
//
// Every event is acknowledged with a [protocol.Done] message, posted after
// any oneshot reply for the same event, so the control side always observes
// a reply while the triggering event is still in flight.
package worker
