package tcp

import "sync"

// EstablishedConnection is the negotiated result of a completed three-way
// handshake: enough state to hand off to a connection-level queue. The full
// data path (retransmission, congestion control, reassembly) is out of
// scope for this libOS core.
type EstablishedConnection struct {
	Local, Remote Endpoint

	LocalISN  uint32
	RemoteISN uint32

	LocalWindowSize  uint32
	RemoteWindowSize uint32
	LocalWindowScale uint8

	RemoteWindowScale uint8
	MSS               uint16
}

// readyResult is either a completed connection or the error that killed its
// handshake. Only a handshake timeout is queued this way; backlog refusal and
// malformed segments are returned from Receive instead.
type readyResult struct {
	conn *EstablishedConnection
	err  error
}

// readySockets is the accept() backlog: a FIFO of completed or failed
// handshakes plus the set of remote endpoints currently present in it, so
// receive() can recognize "a stray packet for a connection not yet
// accepted" without scanning the queue.
type readySockets struct {
	mu        sync.Mutex
	queue     []readyResult
	endpoints map[Endpoint]struct{}
	wake      chan struct{}
}

func newReadySockets() *readySockets {
	return &readySockets{
		endpoints: make(map[Endpoint]struct{}),
		wake:      make(chan struct{}, 1),
	}
}

func (r *readySockets) pushOK(conn *EstablishedConnection) {
	r.mu.Lock()
	if _, dup := r.endpoints[conn.Remote]; dup {
		r.mu.Unlock()
		panic("tcp: duplicate ready endpoint " + conn.Remote.String())
	}
	r.endpoints[conn.Remote] = struct{}{}
	r.queue = append(r.queue, readyResult{conn: conn})
	r.mu.Unlock()
	r.notify()
}

func (r *readySockets) pushErr(err error) {
	r.mu.Lock()
	r.queue = append(r.queue, readyResult{err: err})
	r.mu.Unlock()
	r.notify()
}

func (r *readySockets) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// pop removes and returns the oldest ready result, if any.
func (r *readySockets) pop() (readyResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return readyResult{}, false
	}
	res := r.queue[0]
	r.queue = r.queue[1:]
	if res.conn != nil {
		delete(r.endpoints, res.conn.Remote)
	}
	return res, true
}

func (r *readySockets) hasEndpoint(e Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.endpoints[e]
	return ok
}

func (r *readySockets) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
