package bridge

import (
	"github.com/joeycumines/go-workerbridge/protocol"
)

type (
	// oneshotRequest is a request awaiting a single reply message.
	oneshotRequest struct {
		// start sends the request, e.g. by enqueuing an event. It is called
		// once the continuation is registered.
		start func() error
		// resolve is called with the reply. An error is fatal.
		resolve func(msg protocol.Message) error
		// reject is called instead of resolve, if the reply never arrives.
		reject func(err error)
	}

	// oneshot correlates replies with requests, by message kind. At most one
	// request per kind is outstanding, others wait in FIFO order. Not safe
	// for concurrent use.
	oneshot struct {
		pending map[protocol.Kind]*oneshotRequest
		queued  map[protocol.Kind][]*oneshotRequest
	}
)

func newOneshot() *oneshot {
	return &oneshot{
		pending: make(map[protocol.Kind]*oneshotRequest),
		queued:  make(map[protocol.Kind][]*oneshotRequest),
	}
}

// request registers req under tag, starting it unless another request with
// the same tag is outstanding.
func (x *oneshot) request(tag protocol.Kind, req *oneshotRequest) error {
	if _, ok := x.pending[tag]; ok {
		x.queued[tag] = append(x.queued[tag], req)
		return nil
	}
	x.pending[tag] = req
	return req.start()
}

// resolve passes msg to the request registered under its kind, if any,
// then starts the next request queued under that kind. It reports whether
// msg was consumed.
func (x *oneshot) resolve(msg protocol.Message) (bool, error) {
	tag := msg.Kind()
	req, ok := x.pending[tag]
	if !ok {
		return false, nil
	}
	delete(x.pending, tag)

	if err := req.resolve(msg); err != nil {
		return true, err
	}

	if queued := x.queued[tag]; len(queued) != 0 {
		next := queued[0]
		queued[0] = nil
		if len(queued) == 1 {
			delete(x.queued, tag)
		} else {
			x.queued[tag] = queued[1:]
		}
		x.pending[tag] = next
		return true, next.start()
	}

	return true, nil
}

// outstanding returns the number of registered requests, started or not.
func (x *oneshot) outstanding() int {
	n := len(x.pending)
	for _, queued := range x.queued {
		n += len(queued)
	}
	return n
}

// close rejects every request, started ones first.
func (x *oneshot) close(err error) {
	pending, queued := x.pending, x.queued
	x.pending = make(map[protocol.Kind]*oneshotRequest)
	x.queued = make(map[protocol.Kind][]*oneshotRequest)
	for _, req := range pending {
		if req.reject != nil {
			req.reject(err)
		}
	}
	for _, reqs := range queued {
		for _, req := range reqs {
			if req.reject != nil {
				req.reject(err)
			}
		}
	}
}
