package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

var (
	// errDeadline read deadline passed on a PipeConn
	errDeadline = errors.New("pipe: i/o timeout")
	// errPipeClosed use of a locally closed PipeConn
	errPipeClosed = errors.New("pipe: use of closed connection")
)

type pipeFrame struct {
	mt   int
	data []byte
}

// PipeConn in-memory Conn, created in pairs by NewPipe
type PipeConn struct {
	in     chan pipeFrame
	out    chan pipeFrame
	closed chan struct{}
	peer   *PipeConn
	once   sync.Once

	mu           sync.Mutex
	readDeadline time.Time
}

// NewPipe two connected ends
func NewPipe() (*PipeConn, *PipeConn) {
	a2b := make(chan pipeFrame, 256)
	b2a := make(chan pipeFrame, 256)
	a := &PipeConn{in: b2a, out: a2b, closed: make(chan struct{})}
	b := &PipeConn{in: a2b, out: b2a, closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeConn) frame(f pipeFrame) (int, []byte, error) {
	if f.mt == CloseMessage {
		return 0, nil, parseCloseMessage(f.data)
	}
	return f.mt, f.data, nil
}

// ReadMessage next frame, a close frame or a vanished peer ends the stream with *CloseError
func (p *PipeConn) ReadMessage() (int, []byte, error) {
	p.mu.Lock()
	deadline := p.readDeadline
	p.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case f := <-p.in:
		return p.frame(f)
	case <-p.closed:
		return 0, nil, errPipeClosed
	case <-p.peer.closed:
		// frames written before the peer went away still count
		select {
		case f := <-p.in:
			return p.frame(f)
		default:
		}
		return 0, nil, &CloseError{Code: CloseAbnormalClosure, Text: "peer gone"}
	case <-timeout:
		return 0, nil, errDeadline
	}
}

// WriteMessage queue a frame for the peer
func (p *PipeConn) WriteMessage(mt int, data []byte) error {
	select {
	case <-p.closed:
		return errPipeClosed
	case <-p.peer.closed:
		return &CloseError{Code: CloseAbnormalClosure, Text: "peer gone"}
	default:
	}

	buf := append([]byte(nil), data...)
	select {
	case p.out <- pipeFrame{mt: mt, data: buf}:
		return nil
	case <-p.closed:
		return errPipeClosed
	case <-p.peer.closed:
		return &CloseError{Code: CloseAbnormalClosure, Text: "peer gone"}
	}
}

// SetReadDeadline deadline for the next ReadMessage
func (p *PipeConn) SetReadDeadline(t time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readDeadline = t
	return nil
}

// SetWriteDeadline writes never block past the buffer, ignored
func (p *PipeConn) SetWriteDeadline(t time.Time) error { return nil }

// Close close this end, the peer reads an abnormal closure
func (p *PipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// Closed closed once Close was called
func (p *PipeConn) Closed() <-chan struct{} { return p.closed }

// PipeDialer Dialer handing out PipeConn client ends; the server ends are
// delivered on Accepted. Fail makes every Dial return an error.
type PipeDialer struct {
	Accepted chan *PipeConn

	mu   sync.Mutex
	fail error
}

// NewPipeDialer create PipeDialer
func NewPipeDialer() *PipeDialer {
	return &PipeDialer{Accepted: make(chan *PipeConn, 16)}
}

// Fail make subsequent dials fail with err, nil restores success
func (d *PipeDialer) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// Dial implement Dialer
func (d *PipeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	fail := d.fail
	d.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, server := NewPipe()
	select {
	case d.Accepted <- server:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return client, nil
}
