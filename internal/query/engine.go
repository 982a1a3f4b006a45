// Package query implements the Query Engine: the per-question state
// machine that ties the cache, the reactor-backed server agents, and the
// timeout wheel together into a single asynchronous resolve operation,
// grounded on the orchestration style of
// internal/resolvers/forwarding_resolver.go's queryOne/ChainedResolver
// fallback walk, reworked from blocking calls into callback-driven
// phases since requests are now dispatched through the reactor rather
// than issued with a direct blocking read.
package query

import (
	"sync"
	"time"

	"github.com/jroosing/goresolv/internal/agent"
	"github.com/jroosing/goresolv/internal/cache"
	"github.com/jroosing/goresolv/internal/reactor"
	"github.com/jroosing/goresolv/internal/timerwheel"
	"github.com/jroosing/goresolv/internal/wire"
)

const (
	defaultDNSPort       = "53"
	defaultMaxCNAMEChain = 16
	defaultGlobalTimeout = 5 * time.Second
)

// EngineConfig wires an Engine to its collaborators. Cache, Reactor, and
// Wheel must already be running (Reactor.Run and Wheel.Run called by the
// caller) before any query is submitted.
type EngineConfig struct {
	Cache         *cache.Cache
	Reactor       *reactor.Reactor
	Wheel         *timerwheel.Wheel
	RootHints     []agent.Params
	MaxCNAMEChain int
	GlobalTimeout time.Duration
	DNSPort       string
}

// Engine owns the Active-Query table and hands out query IDs. All of its
// exported methods are safe for concurrent use.
type Engine struct {
	cache         *cache.Cache
	reactor       *reactor.Reactor
	wheel         *timerwheel.Wheel
	rootHints     []agent.Params
	maxCNAMEChain int
	globalTimeout time.Duration
	dnsPort       string

	mu     sync.Mutex
	active map[uint16]*Query
	nextID uint16

	healthMu sync.Mutex
	health   map[string]*UpstreamStat
}

// UpstreamStat is a running tally of how an upstream has behaved across
// every query that has tried it, read by internal/statusapi's
// /status/upstreams endpoint.
type UpstreamStat struct {
	Successes int64
	Failures  int64
}

// NewEngine builds an Engine from cfg, applying the spec's documented
// defaults for any zero-valued field.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.MaxCNAMEChain <= 0 {
		cfg.MaxCNAMEChain = defaultMaxCNAMEChain
	}
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = defaultGlobalTimeout
	}
	if cfg.DNSPort == "" {
		cfg.DNSPort = defaultDNSPort
	}
	return &Engine{
		cache:         cfg.Cache,
		reactor:       cfg.Reactor,
		wheel:         cfg.Wheel,
		rootHints:     cfg.RootHints,
		maxCNAMEChain: cfg.MaxCNAMEChain,
		globalTimeout: cfg.GlobalTimeout,
		dnsPort:       cfg.DNSPort,
		active:        map[uint16]*Query{},
		health:        map[string]*UpstreamStat{},
	}
}

// recordUpstream tallies a success or failure against addr, used from the
// Query state machine's send/response/timeout/error hooks.
func (e *Engine) recordUpstream(addr string, success bool) {
	if addr == "" {
		return
	}
	e.healthMu.Lock()
	defer e.healthMu.Unlock()
	s, ok := e.health[addr]
	if !ok {
		s = &UpstreamStat{}
		e.health[addr] = s
	}
	if success {
		s.Successes++
	} else {
		s.Failures++
	}
}

// UpstreamHealth returns a snapshot of every upstream's tallied
// successes and failures, keyed by dial address.
func (e *Engine) UpstreamHealth() map[string]UpstreamStat {
	e.healthMu.Lock()
	defer e.healthMu.Unlock()
	out := make(map[string]UpstreamStat, len(e.health))
	for addr, s := range e.health {
		out[addr] = *s
	}
	return out
}

// ActiveCount returns the number of queries currently outstanding in the
// Active-Query table.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Resolve submits question and blocks the caller until the terminal
// Outcome is ready.
func (e *Engine) Resolve(question wire.Question, opts Options) Outcome {
	ch := make(chan Outcome, 1)
	e.ResolveAsync(question, opts, func(o Outcome) { ch <- o })
	return <-ch
}

// ResolveAsync submits question and returns immediately with the query's
// allocated ID; callback fires exactly once with the terminal Outcome,
// off the reactor's worker pool.
func (e *Engine) ResolveAsync(question wire.Question, opts Options, callback func(Outcome)) uint16 {
	recursive := opts.Recursive || len(opts.Upstreams) == 0

	agentsRemaining := append([]agent.Params(nil), opts.Upstreams...)
	for i := range agentsRemaining {
		if opts.Timeout > 0 {
			agentsRemaining[i].Timeout = capDuration(opts.Timeout, e.globalTimeout)
		} else if agentsRemaining[i].Timeout <= 0 || agentsRemaining[i].Timeout > e.globalTimeout {
			agentsRemaining[i].Timeout = e.globalTimeout
		}
	}

	transport := opts.InitialTransport

	q := &Query{
		engine:           e,
		question:         question,
		originalQuestion: question,
		opts:             opts,
		callback:         callback,
		recursive:        recursive,
		currentTransport: transport,
		agentsRemaining:  agentsRemaining,
	}

	id := e.allocateID(q)
	q.id = id
	q.initiate()
	return id
}

// Cancel removes id from the Active-Query table and, if it was still
// outstanding, completes its callback with KindCancelled. Returns false if
// id is unknown (already completed, or never existed).
func (e *Engine) Cancel(id uint16) bool {
	e.mu.Lock()
	q, ok := e.active[id]
	if ok {
		delete(e.active, id)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	if q.tryConsumeRound() {
		q.mu.Lock()
		a := q.currentAgent
		q.currentAgent = nil
		q.mu.Unlock()
		if a != nil {
			a.Close()
		}
		q.finish(Outcome{Err: &Err{Kind: KindCancelled}})
	}
	return true
}

func (e *Engine) allocateID(q *Query) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		e.nextID++
		id := e.nextID
		if _, taken := e.active[id]; !taken {
			e.active[id] = q
			return id
		}
	}
}

func (e *Engine) removeActive(id uint16) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

// delegationFromCache looks up the best cached NS set (and its glue) for
// name or one of its ancestors, used to re-anchor the recursive walk after
// a CNAME rewrite without restarting at the roots.
func (e *Engine) delegationFromCache(name wire.Name) []agent.Params {
	for {
		if nsRecords, fresh := e.cache.Get(name, wire.TypeNS, wire.ClassIN); fresh && len(nsRecords) > 0 {
			var params []agent.Params
			for _, rr := range nsRecords {
				nr, ok := rr.(wire.NameRecord)
				if !ok {
					continue
				}
				if ips, fresh2 := e.cache.Get(nr.Target, wire.TypeA, wire.ClassIN); fresh2 {
					params = append(params, ipAgentParams(ips, string(nr.Target), e.dnsPort, e.globalTimeout)...)
				}
			}
			if len(params) > 0 {
				return params
			}
		}
		parent, ok := name.Parent()
		if !ok {
			return nil
		}
		name = parent
	}
}

func capDuration(d, ceiling time.Duration) time.Duration {
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

func kindFromRCode(rc wire.RCode) ErrKind {
	switch rc {
	case wire.RCodeNXDomain:
		return KindNameError
	default:
		return KindServerError
	}
}
