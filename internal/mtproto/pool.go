package mtproto

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/tgstream/gateway/internal/config"
)

// prewarmDCs are the datacenters the original implementation establishes
// sessions for at startup, regardless of which DC actually holds the first
// requested file (spec §4.A).
var prewarmDCs = []int{1, 2, 4, 5}

const (
	authRetries = 6
	authBackoff = 500 * time.Millisecond
	authJitter  = 500 * time.Millisecond
)

// Client is one authenticated upstream identity: a home *telegram.Client
// plus the lazily-dialed sessions it has established on foreign DCs.
type Client struct {
	Index  int
	HomeDC int

	apiID   int
	apiHash string

	tg       *telegram.Client
	home     Session
	upstream Upstream

	mu       sync.Mutex
	sessions map[int]Session // dc -> authorized session, including HomeDC
}

// WorkloadTable tracks the number of streams currently attributed to each
// client index, read by the selector (component C) to pick the least-loaded
// client, and mutated by the HTTP download handler as streams start and
// finish.
type WorkloadTable struct {
	mu    sync.Mutex
	loads map[int]int
}

func newWorkloadTable(indices []int) *WorkloadTable {
	loads := make(map[int]int, len(indices))
	for _, i := range indices {
		loads[i] = 0
	}
	return &WorkloadTable{loads: loads}
}

func (w *WorkloadTable) Inc(index int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loads[index]++
}

func (w *WorkloadTable) Dec(index int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loads[index] > 0 {
		w.loads[index]--
	}
}

// Snapshot returns a copy of the current per-client load, safe to range
// over without holding the table's lock.
func (w *WorkloadTable) Snapshot() map[int]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[int]int, len(w.loads))
	for k, v := range w.loads {
		out[k] = v
	}
	return out
}

// SessionPool is the Upstream Session Pool (spec §4.A): it owns one *Client
// per configured identity, prewarms sessions on prewarmDCs at startup, and
// serves authorized per-DC sessions to the fetcher, serialising session
// creation per client so two concurrent streams never race to dial the
// same DC twice.
type SessionPool struct {
	log      *zap.Logger
	upstream Upstream
	clients  []*Client
	Workload *WorkloadTable

	// baseCtx bounds every background connection goroutine the pool starts.
	// Individual requests pass their own short-lived ctx into SessionFor
	// only to bound the dial itself; the connection it returns keeps
	// running under baseCtx until Close cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSessionPool(ctx context.Context, cfg []config.ClientConfig, upstream Upstream, log *zap.Logger) (*SessionPool, error) {
	if len(cfg) == 0 {
		return nil, ErrNoClients
	}

	baseCtx, cancel := context.WithCancel(ctx)

	clients := make([]*Client, 0, len(cfg))
	indices := make([]int, 0, len(cfg))
	for _, cc := range cfg {
		storage := &session.FileStorage{Path: cc.SessionPath}
		tgClient := telegram.NewClient(cc.APIID, cc.APIHash, telegram.Options{
			SessionStorage: storage,
		})

		c := &Client{
			Index:    cc.Index,
			HomeDC:   cc.HomeDC,
			apiID:    cc.APIID,
			apiHash:  cc.APIHash,
			tg:       tgClient,
			upstream: upstream,
			sessions: make(map[int]Session),
		}
		clients = append(clients, c)
		indices = append(indices, cc.Index)
	}

	pool := &SessionPool{
		log:      log,
		upstream: upstream,
		clients:  clients,
		Workload: newWorkloadTable(indices),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}

	for _, c := range clients {
		if err := pool.prewarm(ctx, c); err != nil {
			log.Warn("prewarm failed for client", zap.Int("client", c.Index), zap.Error(err))
		}
	}

	return pool, nil
}

// Close cancels every client's background MTProto connection and waits for
// its goroutine to exit, the pool's explicit shutdown (spec §4.A).
func (p *SessionPool) Close() {
	p.cancel()
	p.wg.Wait()
}

// prewarm establishes the client's home session plus a best-effort session
// on every entry of prewarmDCs, matching _prewarm_sessions in the original
// implementation. Failures here are logged, not fatal: the fetcher falls
// back to establishing a session on demand.
func (p *SessionPool) prewarm(ctx context.Context, c *Client) error {
	if _, err := p.sessionFor(ctx, c, c.HomeDC); err != nil {
		return fmt.Errorf("home dc %d: %w", c.HomeDC, err)
	}
	for _, dc := range prewarmDCs {
		if dc == c.HomeDC {
			continue
		}
		if _, err := p.sessionFor(ctx, c, dc); err != nil {
			p.log.Debug("prewarm dc failed", zap.Int("client", c.Index), zap.Int("dc", dc), zap.Error(err))
		}
	}
	return nil
}

// Clients returns every configured client, in configuration order.
func (p *SessionPool) Clients() []*Client {
	return p.clients
}

// ClientByIndex looks up a client by its configured index.
func (p *SessionPool) ClientByIndex(index int) (*Client, bool) {
	for _, c := range p.clients {
		if c.Index == index {
			return c, true
		}
	}
	return nil, false
}

// SessionFor returns an authorized session for c on dc, establishing and
// caching it if necessary. Session creation is serialised per client so
// concurrent fetchers for the same client never duplicate the export/import
// dance for the same DC.
func (p *SessionPool) SessionFor(ctx context.Context, c *Client, dc int) (Session, error) {
	return p.sessionFor(ctx, c, dc)
}

func (p *SessionPool) sessionFor(ctx context.Context, c *Client, dc int) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sess, ok := c.sessions[dc]; ok {
		return sess, nil
	}

	if c.home.api == nil {
		home, err := p.dialHome(ctx, c)
		if err != nil {
			return Session{}, fmt.Errorf("mtproto: start home client: %w", err)
		}
		c.home = home
		c.sessions[c.HomeDC] = home
		if dc == c.HomeDC {
			return home, nil
		}
	}

	sess, err := p.establishForeign(ctx, c, dc)
	if err != nil {
		return Session{}, err
	}
	c.sessions[dc] = sess
	return sess, nil
}

// dialHome starts c's home MTProto connection in a goroutine that outlives
// this call and keeps running under the pool's baseCtx, returning once the
// connection is up. telegram.Client.Run tears its connection down the
// instant its callback returns, so the callback here blocks on its own
// runCtx instead of returning immediately — otherwise every *tg.Client this
// pool hands out would already be bound to a closed connection by the time a
// fetch tried to use it.
func (p *SessionPool) dialHome(ctx context.Context, c *Client) (Session, error) {
	ready := make(chan *tg.Client, 1)
	failed := make(chan error, 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := c.tg.Run(p.baseCtx, func(runCtx context.Context) error {
			ready <- c.tg.API()
			<-runCtx.Done()
			return nil
		})
		if err != nil {
			select {
			case failed <- err:
			default:
			}
		}
	}()

	select {
	case api := <-ready:
		return Session{dc: c.HomeDC, api: api}, nil
	case err := <-failed:
		return Session{}, err
	case <-ctx.Done():
		return Session{}, ctx.Err()
	case <-p.baseCtx.Done():
		return Session{}, p.baseCtx.Err()
	}
}

// dialForeign starts a connection to dc under runCtx (a child of the pool's
// baseCtx scoped to one authorization attempt) and returns once connected.
// A caller that abandons the attempt must cancel runCtx itself to release
// the connection; a successful attempt is left running for the pool's
// lifetime, same as dialHome.
func (p *SessionPool) dialForeign(runCtx context.Context, c *Client, dc int) (Session, error) {
	foreign := telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		DC:             dc,
		DCList:         dcs.Prod(),
		SessionStorage: &session.StorageMemory{},
	})

	ready := make(chan *tg.Client, 1)
	failed := make(chan error, 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := foreign.Run(runCtx, func(cbCtx context.Context) error {
			ready <- foreign.API()
			<-cbCtx.Done()
			return nil
		})
		if err != nil {
			select {
			case failed <- err:
			default:
			}
		}
	}()

	select {
	case api := <-ready:
		return Session{dc: dc, api: api}, nil
	case err := <-failed:
		return Session{}, err
	case <-runCtx.Done():
		return Session{}, runCtx.Err()
	}
}

// tryForeignAuth dials dc and performs the export/import authorization
// dance against it once, leaving the dialed connection open on success.
func (p *SessionPool) tryForeignAuth(ctx, attemptCtx context.Context, c *Client, dc int) (Session, error) {
	sess, err := p.dialForeign(attemptCtx, c, dc)
	if err != nil {
		return Session{}, err
	}

	id, bytes, err := c.upstream.ExportAuthorization(ctx, c.home, dc)
	if err != nil {
		return Session{}, err
	}
	if err := c.upstream.ImportAuthorization(ctx, sess, id, bytes); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// establishForeign performs the export/import authorization dance against a
// DC other than the client's home, making up to authRetries attempts in
// total with linear backoff. Every failed attempt is retried whatever the
// error; the error kind is not inspected. Each attempt gets its own
// connection; a failed attempt's connection is cancelled before the next
// retry so it doesn't leak.
func (p *SessionPool) establishForeign(ctx context.Context, c *Client, dc int) (Session, error) {
	var lastErr error

	for attempt := 1; attempt <= authRetries; attempt++ {
		attemptCtx, cancel := context.WithCancel(p.baseCtx)
		sess, err := p.tryForeignAuth(ctx, attemptCtx, c, dc)
		if err == nil {
			return sess, nil
		}
		cancel()
		lastErr = err

		select {
		case <-ctx.Done():
			return Session{}, ctx.Err()
		case <-time.After(authBackoff + time.Duration(attempt)*authJitter/authRetries):
		}
	}

	return Session{}, fmt.Errorf("%w: dc %d after %d attempts: %v", ErrSessionUnavailable, dc, authRetries, lastErr)
}
