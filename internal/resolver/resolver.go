// Package resolver is the public surface of the library: a thin
// translation layer over the Query Engine, grounded on the teacher's own
// preference for a small, uninteresting outer API sitting atop a richer
// internal engine (internal/resolvers.ChainedResolver wrapped by a couple
// of exported convenience methods).
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/jroosing/goresolv/internal/agent"
	"github.com/jroosing/goresolv/internal/cache"
	"github.com/jroosing/goresolv/internal/helpers"
	"github.com/jroosing/goresolv/internal/query"
	"github.com/jroosing/goresolv/internal/reactor"
	"github.com/jroosing/goresolv/internal/roothints"
	"github.com/jroosing/goresolv/internal/timerwheel"
	"github.com/jroosing/goresolv/internal/wire"
	"github.com/jroosing/goresolv/internal/workerpool"
)

// Config wires a Resolver's collaborators and behavior. A zero Config is
// usable: every field has a documented default applied by New.
type Config struct {
	// Upstreams are forwarding-mode servers, tried in priority order.
	// Leave empty to start in recursive mode using RootHints.
	Upstreams []agent.Params

	// RootHintsPath, if set, is a "name IP" text file loaded at startup;
	// on any load error the compiled-in IANA root server list is used
	// instead. RootHints, if non-empty, takes priority over the file.
	RootHintsPath string
	RootHints     []agent.Params

	WorkerThreads     int
	UDPBufferBytes    int
	PositiveCacheCapS int
	NegativeCacheCapS int
	MaxCNAMEChain     int
	UseIPv4           bool
	UseIPv6           bool
	QueryTimeout      time.Duration
	DNSPort           string

	Logger *slog.Logger
}

const (
	defaultWorkerThreads     = 32
	defaultUDPBufferBytes    = 8 * 1024
	defaultPositiveCacheCapS = 4096
	defaultNegativeCacheCapS = 4096
	defaultQueryTimeout      = 5 * time.Second
	defaultCacheMaxEntries   = 65536
)

func (c Config) normalized() Config {
	if c.WorkerThreads <= 0 {
		c.WorkerThreads = defaultWorkerThreads
	}
	if c.UDPBufferBytes <= 0 {
		c.UDPBufferBytes = defaultUDPBufferBytes
	}
	c.UDPBufferBytes = helpers.ClampInt(c.UDPBufferBytes, 512, 65535)
	if c.PositiveCacheCapS <= 0 {
		c.PositiveCacheCapS = defaultPositiveCacheCapS
	}
	if c.NegativeCacheCapS <= 0 {
		c.NegativeCacheCapS = defaultNegativeCacheCapS
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
	if !c.UseIPv4 && !c.UseIPv6 {
		c.UseIPv4 = true
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Resolver is a running resolver instance: a cache, a reactor, a timer
// wheel, and the query engine tying them together. Create one with New
// and keep it for the lifetime of the process; Close releases its
// background goroutines.
type Resolver struct {
	cfg     Config
	cache   *cache.Cache
	reactor *reactor.Reactor
	wheel   *timerwheel.Wheel
	pool    *workerpool.Pool
	engine  *query.Engine
	logger  *slog.Logger
}

// New builds and starts a Resolver: the reactor, timer wheel, and worker
// pool are all running by the time New returns.
func New(cfg Config) *Resolver {
	cfg = cfg.normalized()

	rootHints := cfg.RootHints
	if len(rootHints) == 0 {
		rootHints = roothints.LoadOrCompiled(cfg.RootHintsPath, roothints.Options{
			Port:    cfg.DNSPort,
			Timeout: cfg.QueryTimeout,
			UseIPv4: cfg.UseIPv4,
			UseIPv6: cfg.UseIPv6,
		})
	}

	c := cache.New(cache.Config{
		PositiveCap: time.Duration(cfg.PositiveCacheCapS) * time.Second,
		NegativeCap: time.Duration(cfg.NegativeCacheCapS) * time.Second,
		MaxEntries:  defaultCacheMaxEntries,
	})

	pool := workerpool.New(cfg.WorkerThreads)

	r := reactor.New(pool.Submit, cfg.Logger)
	go r.Run()

	w := timerwheel.New(timerwheel.DefaultTick, timerwheel.DefaultSlots, pool.Submit)
	go w.Run()

	engine := query.NewEngine(query.EngineConfig{
		Cache:         c,
		Reactor:       r,
		Wheel:         w,
		RootHints:     rootHints,
		MaxCNAMEChain: cfg.MaxCNAMEChain,
		GlobalTimeout: cfg.QueryTimeout,
		DNSPort:       cfg.DNSPort,
	})

	cfg.Logger.Info("resolver starting",
		"workers", cfg.WorkerThreads,
		"root_hints", len(rootHints),
		"recursive_default", len(cfg.Upstreams) == 0,
	)

	return &Resolver{cfg: cfg, cache: c, reactor: r, wheel: w, pool: pool, engine: engine, logger: cfg.Logger}
}

// Close stops the reactor, the timer wheel, and the worker pool. A
// Resolver must not be used after Close returns.
func (res *Resolver) Close() error {
	res.wheel.Stop()
	res.reactor.Shutdown()
	res.pool.Close()
	res.logger.Info("resolver stopped")
	return nil
}

// Outcome is the public result of a resolution: the translated,
// reader-friendly shape of query.Outcome.
type Outcome struct {
	Answers     []wire.RR
	Authorities []wire.RR
	Additional  []wire.RR
	Err         *query.Err
	Log         []query.LogEntry
	SubLogs     []query.SubLog
}

// Ok reports whether the resolution completed without error.
func (o Outcome) Ok() bool { return o.Err == nil }

// Options mirrors query.Options; kept as a distinct type so callers of
// this package never need to import internal/query directly.
type Options struct {
	Upstreams        []agent.Params
	InitialTransport agent.Transport
	Timeout          time.Duration
	Recursive        bool
	CacheBypass      bool
}

func (o Options) toQuery() query.Options {
	return query.Options{
		Upstreams:        o.Upstreams,
		InitialTransport: o.InitialTransport,
		Timeout:          o.Timeout,
		Recursive:        o.Recursive,
		CacheBypass:      o.CacheBypass,
	}
}

// Resolve blocks until question's resolution completes or ctx is done.
// A context cancellation is translated into query.KindCancelled via
// Engine.Cancel, so the caller always gets a terminal Outcome rather than
// a dangling goroutine.
func (res *Resolver) Resolve(ctx context.Context, question wire.Question, opts Options) Outcome {
	qopts := opts.toQuery()
	if len(qopts.Upstreams) == 0 {
		qopts.Upstreams = res.cfg.Upstreams
	}

	ch := make(chan query.Outcome, 1)
	id := res.engine.ResolveAsync(question, qopts, func(o query.Outcome) { ch <- o })

	select {
	case o := <-ch:
		return translateOutcome(o)
	case <-ctx.Done():
		res.engine.Cancel(id)
		o := <-ch
		return translateOutcome(o)
	}
}

// ResolveAsync submits question and returns immediately; callback fires
// exactly once with the terminal Outcome.
func (res *Resolver) ResolveAsync(question wire.Question, opts Options, callback func(Outcome)) uint16 {
	qopts := opts.toQuery()
	if len(qopts.Upstreams) == 0 {
		qopts.Upstreams = res.cfg.Upstreams
	}
	return res.engine.ResolveAsync(question, qopts, func(o query.Outcome) { callback(translateOutcome(o)) })
}

// Cancel cancels an outstanding ResolveAsync call by its returned ID.
func (res *Resolver) Cancel(id uint16) bool { return res.engine.Cancel(id) }

// CacheStats reports the cache's current size and hit/miss counters, for
// callers building an introspection surface on top of a Resolver.
func (res *Resolver) CacheStats() cache.Stats { return res.cache.Stats() }

// ActiveQueryCount reports how many resolutions are currently in flight.
func (res *Resolver) ActiveQueryCount() int { return res.engine.ActiveCount() }

// UpstreamHealth reports a snapshot of every upstream's tallied
// successes and failures, keyed by dial address.
func (res *Resolver) UpstreamHealth() map[string]query.UpstreamStat { return res.engine.UpstreamHealth() }

func translateOutcome(o query.Outcome) Outcome {
	return Outcome{
		Answers:     o.Answers.Answers,
		Authorities: o.Answers.Authorities,
		Additional:  o.Answers.Additional,
		Err:         o.Err,
		Log:         o.Log,
		SubLogs:     o.SubLogs,
	}
}

// LookupHost resolves name to its A (and, if enabled, AAAA) records and
// returns the plain text IP addresses, matching the naming net.Resolver
// uses for the same operation.
func (res *Resolver) LookupHost(ctx context.Context, name string) ([]string, error) {
	n, err := wire.NewName(name)
	if err != nil {
		return nil, err
	}

	var addrs []string
	types := []wire.RecordType{wire.TypeA}
	if res.cfg.UseIPv6 {
		types = append(types, wire.TypeAAAA)
	}
	for _, t := range types {
		o := res.Resolve(ctx, wire.Question{Name: n, Type: t, Class: wire.ClassIN}, Options{})
		if !o.Ok() {
			if t == wire.TypeA {
				return nil, o.Err
			}
			continue
		}
		for _, rr := range o.Answers {
			if ip, ok := rr.(wire.IPRecord); ok {
				addrs = append(addrs, ip.Addr.String())
			}
		}
	}
	if len(addrs) == 0 {
		return nil, &query.Err{Kind: query.KindNoData, Message: "no addresses found for " + name}
	}
	return addrs, nil
}

// LookupIP is an alias for LookupHost kept for callers more comfortable
// with net.Resolver's split naming.
func (res *Resolver) LookupIP(ctx context.Context, name string) ([]string, error) {
	return res.LookupHost(ctx, name)
}
