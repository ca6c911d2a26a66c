package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"github.com/drossix/shardmerge/core"
	"github.com/drossix/shardmerge/logging"
)

// Options configures a Pool.
type Options struct {
	// Workers caps the number of goroutines executing command sends.
	Workers int

	// Dialer establishes peer connections. Defaults to
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// WriteTimeout bounds a single command send on a connection.
	WriteTimeout time.Duration

	// Logger receives connection and dispatch diagnostics.
	Logger logging.Logger
}

// pending tracks one scheduled command until its reply, failure or
// cancellation is delivered.
type pending struct {
	cb   core.ResponseCallback
	addr string
}

// Pool is a core.Scheduler dispatching commands over one persistent WebSocket
// connection per peer address, with sends executed on a shared worker pool.
type Pool struct {
	workers *ants.Pool
	dialer  *websocket.Dialer
	log     logging.Logger
	wtimeo  time.Duration

	mu      sync.Mutex
	conns   map[string]*peerConn
	pending map[core.CommandHandle]pending
	closed  bool
}

type peerConn struct {
	addr    string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// New constructs a Pool.
func New(optFns ...func(*Options)) (*Pool, error) {
	opts := Options{
		Workers:      32,
		Dialer:       websocket.DefaultDialer,
		WriteTimeout: 10 * time.Second,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	workers, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Pool{
		workers: workers,
		dialer:  opts.Dialer,
		log:     opts.Logger,
		wtimeo:  opts.WriteTimeout,
		conns:   map[string]*peerConn{},
		pending: map[core.CommandHandle]pending{},
	}, nil
}

// Connect pre-dials the given peer addresses concurrently. Connections are
// otherwise established lazily on first command.
func (p *Pool) Connect(ctx context.Context, addrs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			_, err := p.conn(ctx, addr)
			return err
		})
	}
	return g.Wait()
}

// ScheduleRemoteCommand implements core.Scheduler. The send is executed on a
// pool worker; the callback fires from the connection's reader goroutine (on
// reply) or from a worker (on failure or cancellation).
func (p *Pool) ScheduleRemoteCommand(ctx context.Context, addr string, cmd []byte, cb core.ResponseCallback) (core.CommandHandle, error) {
	handle := core.CommandHandle(uuid.NewString())

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", fmt.Errorf("scheduler closed")
	}
	p.pending[handle] = pending{cb: cb, addr: addr}
	p.mu.Unlock()

	err := p.workers.Submit(func() { p.send(ctx, handle, addr, cmd) })
	if err != nil {
		p.mu.Lock()
		delete(p.pending, handle)
		p.mu.Unlock()
		return "", fmt.Errorf("submit command: %w", err)
	}

	return handle, nil
}

// Cancel implements core.Scheduler. Delivery happens on a pool goroutine so
// callers may hold their own locks across Cancel.
func (p *Pool) Cancel(handle core.CommandHandle) {
	if err := p.workers.Submit(func() { p.complete(handle, nil, core.ErrCallbackCanceled) }); err != nil {
		go p.complete(handle, nil, core.ErrCallbackCanceled)
	}
}

func (p *Pool) send(ctx context.Context, handle core.CommandHandle, addr string, cmd []byte) {
	if err := ctx.Err(); err != nil {
		p.complete(handle, nil, err)
		return
	}

	pc, err := p.conn(ctx, addr)
	if err != nil {
		p.complete(handle, nil, err)
		return
	}

	envelope, _ := sjson.SetBytes([]byte(`{}`), "id", string(handle))
	envelope, _ = sjson.SetRawBytes(envelope, "body", cmd)

	pc.writeMu.Lock()
	_ = pc.ws.SetWriteDeadline(time.Now().Add(p.wtimeo))
	err = pc.ws.WriteMessage(websocket.TextMessage, envelope)
	pc.writeMu.Unlock()

	if err != nil {
		p.failConn(pc, err)
		p.complete(handle, nil, fmt.Errorf("write to %s: %w", addr, err))
	}
}

// conn returns the live connection for addr, dialing and starting its reader
// goroutine if needed.
func (p *Pool) conn(ctx context.Context, addr string) (*peerConn, error) {
	p.mu.Lock()
	if pc, ok := p.conns[addr]; ok {
		p.mu.Unlock()
		return pc, nil
	}
	p.mu.Unlock()

	ws, _, err := p.dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	pc := &peerConn{addr: addr, ws: ws}

	p.mu.Lock()
	if existing, ok := p.conns[addr]; ok {
		// Lost the dial race; keep the established connection.
		p.mu.Unlock()
		_ = ws.Close()
		return existing, nil
	}
	p.conns[addr] = pc
	p.mu.Unlock()

	go p.readLoop(pc)
	p.log.Debug("peer connected", "addr", addr)
	return pc, nil
}

// readLoop dispatches replies to pending callbacks by correlation id until
// the connection dies, then fails every command still pending on it.
func (p *Pool) readLoop(pc *peerConn) {
	for {
		_, msg, err := pc.ws.ReadMessage()
		if err != nil {
			p.failConn(pc, err)
			return
		}

		id := gjson.GetBytes(msg, "id").String()
		body := gjson.GetBytes(msg, "body")
		if id == "" || !body.Exists() {
			p.log.Warn("dropping reply without correlation envelope", "addr", pc.addr)
			continue
		}
		p.complete(core.CommandHandle(id), []byte(body.Raw), nil)
	}
}

// complete delivers an outcome to a pending callback exactly once: the first
// caller removes the entry, later outcomes for the same handle are dropped.
func (p *Pool) complete(handle core.CommandHandle, reply []byte, err error) {
	p.mu.Lock()
	cmd, ok := p.pending[handle]
	if ok {
		delete(p.pending, handle)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	cmd.cb(reply, err)
}

// failConn tears a connection down and fails every command pending on its
// address.
func (p *Pool) failConn(pc *peerConn, cause error) {
	p.mu.Lock()
	if p.conns[pc.addr] == pc {
		delete(p.conns, pc.addr)
	}
	var orphans []core.CommandHandle
	for handle, cmd := range p.pending {
		if cmd.addr == pc.addr {
			orphans = append(orphans, handle)
		}
	}
	p.mu.Unlock()

	_ = pc.ws.Close()
	if len(orphans) > 0 {
		p.log.Warn("peer connection lost", "addr", pc.addr, "pending", len(orphans), "error", cause)
	}
	for _, handle := range orphans {
		p.complete(handle, nil, fmt.Errorf("connection to %s lost: %w", pc.addr, cause))
	}
}

// Close shuts the pool down: every open connection is closed, every pending
// command fails, and the worker pool is released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	conns := make([]*peerConn, 0, len(p.conns))
	for _, pc := range p.conns {
		conns = append(conns, pc)
	}
	p.mu.Unlock()

	for _, pc := range conns {
		p.failConn(pc, fmt.Errorf("scheduler closed"))
	}
	p.workers.Release()
}
