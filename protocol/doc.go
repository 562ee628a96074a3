// Package protocol defines what crosses the boundary between the control
// side and the compute side: the event kinds written to the mailbox, and the
// messages exchanged over a [Channel].
//
// Events flow control -> compute through the mailbox, exactly one at a time.
// Messages flow compute -> control (acknowledgements, oneshot replies, and
// unsolicited notifications), and control -> compute (the [Start] message).
// Each direction of a Channel is FIFO.
package protocol
