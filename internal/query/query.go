package query

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jroosing/goresolv/internal/agent"
	"github.com/jroosing/goresolv/internal/wire"
)

type phase int

const (
	phaseNew phase = iota
	phaseInFlight
	phaseWaitTCP
	phaseComplete
)

// Query is one outstanding question's state machine: NEW -> IN_FLIGHT ->
// (WAIT_TCP | COMPLETE). All mutation happens from at most one goroutine
// at a time per round, enforced by tryConsumeRound rather than by holding
// a lock across the whole handler — onMessage/onTimeout/onError race to
// claim the current round, and only the claimant proceeds, which is what
// makes "a response racing a just-fired timeout resolves to exactly one
// state transition" true without serializing the whole engine.
type Query struct {
	engine   *Engine
	id       uint16
	question wire.Question
	// originalQuestion is preserved across CNAME rewrites so the final
	// Outcome can still be correlated back to what the caller actually
	// asked for, even though q.question.Name changes mid-walk.
	originalQuestion wire.Question
	opts             Options
	callback         func(Outcome)

	recursive        bool
	currentTransport agent.Transport
	agentsRemaining  []agent.Params
	lastParams       agent.Params
	lastRCode        wire.RCode
	cnameChainLen    int
	queryMsg         wire.Message

	mu          sync.Mutex
	phase       phase
	currentAgent *agent.Agent
	roundDone   bool
	completed   bool
	log         []LogEntry
	subLogs     []SubLog
}

func (q *Query) initiate() {
	if !q.opts.CacheBypass {
		if rcode, ok := q.engine.cache.GetNegative(q.question.Name, q.question.Class); ok {
			q.finish(Outcome{Err: &Err{Kind: kindFromRCode(rcode), RCode: rcode}})
			return
		}
		if records, fresh := q.engine.cache.Get(q.question.Name, q.question.Type, q.question.Class); fresh && len(records) > 0 {
			q.finish(Outcome{Answers: Answers{Answers: records}})
			return
		}
	}

	if len(q.agentsRemaining) == 0 {
		q.recursive = true
		q.agentsRemaining = append([]agent.Params(nil), q.engine.rootHints...)
	}
	sortByPriority(q.agentsRemaining)
	q.sendNext()
}

// tryConsumeRound claims the current round for exactly one of
// onMessage/onTimeout/onError/Cancel. Returns false if the round was
// already claimed (or the query already completed).
func (q *Query) tryConsumeRound() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.completed || q.roundDone {
		return false
	}
	q.roundDone = true
	return true
}

func (q *Query) beginRound() {
	q.mu.Lock()
	q.roundDone = false
	q.mu.Unlock()
}

func (q *Query) setCurrentAgent(a *agent.Agent) {
	q.mu.Lock()
	q.currentAgent = a
	q.mu.Unlock()
}

func (q *Query) takeCurrentAgent() *agent.Agent {
	q.mu.Lock()
	a := q.currentAgent
	q.currentAgent = nil
	q.mu.Unlock()
	return a
}

func (q *Query) logEvent(params agent.Params, event string, err error) {
	entry := LogEntry{
		Time:      time.Now(),
		Upstream:  params.Name,
		Addr:      params.Addr,
		Transport: q.currentTransport.String(),
		Event:     event,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	q.mu.Lock()
	q.log = append(q.log, entry)
	q.mu.Unlock()

	switch event {
	case "response":
		q.engine.recordUpstream(params.Addr, true)
	case "dial-error", "send-error", "timeout", "network-error":
		q.engine.recordUpstream(params.Addr, false)
	}
}

// finish delivers the terminal Outcome exactly once and evicts the query
// from the Active-Query table before the callback runs. A late response or
// timeout that arrives afterward is dropped by tryConsumeRound, which
// refuses once the query is completed.
func (q *Query) finish(o Outcome) {
	q.mu.Lock()
	if q.completed {
		q.mu.Unlock()
		return
	}
	q.completed = true
	q.phase = phaseComplete
	o.Log = append([]LogEntry(nil), q.log...)
	o.SubLogs = append([]SubLog(nil), q.subLogs...)
	q.mu.Unlock()

	q.engine.removeActive(q.id)
	q.callback(o)
}

func (q *Query) buildMessage() wire.Message {
	var flags uint16
	if !q.recursive {
		flags |= wire.FlagRD
	}
	return wire.Message{
		Header:    wire.Header{ID: q.id, Flags: flags, QDCount: 1},
		Questions: []wire.Question{q.question},
	}
}

// sendNext pops the highest-priority remaining upstream, dials a fresh
// Agent, and sends the current query message. Recurses (bounded by the
// shrinking agentsRemaining slice) past upstreams that fail to dial.
func (q *Query) sendNext() {
	q.mu.Lock()
	completed := q.completed
	q.mu.Unlock()
	if completed {
		return
	}

	if len(q.agentsRemaining) == 0 {
		if q.lastRCode != 0 {
			q.finish(Outcome{Err: &Err{Kind: KindServerError, RCode: q.lastRCode}})
		} else {
			q.finish(Outcome{Err: &Err{Kind: KindNetwork, Message: "no upstreams available"}})
		}
		return
	}

	params := q.agentsRemaining[0]
	q.agentsRemaining = q.agentsRemaining[1:]
	if params.Timeout <= 0 {
		params.Timeout = q.engine.globalTimeout
	} else {
		params.Timeout = capDuration(params.Timeout, q.engine.globalTimeout)
	}
	q.lastParams = params

	a, err := agent.Dial(q.engine.reactor, q.engine.wheel, params, q.currentTransport, agent.Callbacks{
		OnMessage: q.onMessage,
		OnTimeout: q.onTimeout,
		OnError:   q.onError,
	})
	if err != nil {
		q.logEvent(params, "dial-error", err)
		q.sendNext()
		return
	}

	q.setCurrentAgent(a)
	q.beginRound()
	msg := q.buildMessage()
	q.queryMsg = msg

	if err := a.SendQuery(msg); err != nil {
		q.logEvent(params, "send-error", err)
		a.Close()
		q.setCurrentAgent(nil)
		q.sendNext()
		return
	}

	q.mu.Lock()
	q.phase = phaseInFlight
	q.mu.Unlock()
	q.logEvent(params, "sent", nil)
}

// promoteToTCP resends the identical message to the same upstream over
// TCP, without consuming an entry from agentsRemaining, per the UDP
// truncation-retry rule.
func (q *Query) promoteToTCP() {
	q.currentTransport = agent.TransportTCP
	q.mu.Lock()
	q.phase = phaseWaitTCP
	q.mu.Unlock()

	a, err := agent.Dial(q.engine.reactor, q.engine.wheel, q.lastParams, agent.TransportTCP, agent.Callbacks{
		OnMessage: q.onMessage,
		OnTimeout: q.onTimeout,
		OnError:   q.onError,
	})
	if err != nil {
		q.logEvent(q.lastParams, "dial-error", err)
		q.sendNext()
		return
	}
	q.setCurrentAgent(a)
	q.beginRound()
	if err := a.SendQuery(q.queryMsg); err != nil {
		q.logEvent(q.lastParams, "send-error", err)
		a.Close()
		q.setCurrentAgent(nil)
		q.sendNext()
		return
	}
	q.logEvent(q.lastParams, "tcp-promote", nil)
}

func (q *Query) onTimeout() {
	if !q.tryConsumeRound() {
		return
	}
	q.logEvent(q.lastParams, "timeout", nil)
	if a := q.takeCurrentAgent(); a != nil {
		a.Close()
	}
	if len(q.agentsRemaining) > 0 {
		q.sendNext()
		return
	}
	q.finish(Outcome{Err: &Err{Kind: KindTimeout, Message: "no response within deadline"}})
}

func (q *Query) onError(err error) {
	if !q.tryConsumeRound() {
		return
	}
	q.logEvent(q.lastParams, "network-error", err)
	if a := q.takeCurrentAgent(); a != nil {
		a.Close()
	}
	if len(q.agentsRemaining) > 0 {
		q.sendNext()
		return
	}
	q.finish(Outcome{Err: &Err{Kind: KindNetwork, Cause: err}})
}

func (q *Query) onMessage(raw []byte) {
	if !q.tryConsumeRound() {
		return
	}
	closing := q.takeCurrentAgent()

	msg, err := wire.Decode(raw)
	if err != nil {
		if closing != nil {
			closing.Close()
		}
		q.logEvent(q.lastParams, "malformed", err)
		if len(q.agentsRemaining) > 0 {
			q.sendNext()
			return
		}
		q.finish(Outcome{Err: &Err{Kind: KindMalformedMessage, Cause: err}})
		return
	}

	if msg.Header.ID != q.id {
		if closing != nil {
			closing.Close()
		}
		q.logEvent(q.lastParams, "id-mismatch", nil)
		if len(q.agentsRemaining) > 0 {
			q.sendNext()
			return
		}
		q.finish(Outcome{Err: &Err{Kind: KindProtocol, Message: "response id did not match query id"}})
		return
	}

	if msg.Truncated() && q.currentTransport == agent.TransportUDP {
		if closing != nil {
			closing.Close()
		}
		q.promoteToTCP()
		return
	}

	if closing != nil {
		closing.Close()
	}

	rcode := msg.RCode()
	q.logEvent(q.lastParams, "response", nil)

	switch rcode {
	case wire.RCodeOK:
		q.handleOK(msg)
	case wire.RCodeNXDomain:
		q.handleNameError(msg)
	default:
		q.lastRCode = rcode
		if len(q.agentsRemaining) > 0 {
			q.sendNext()
			return
		}
		q.finish(Outcome{Err: &Err{Kind: KindServerError, RCode: rcode}})
	}
}

func (q *Query) handleOK(msg wire.Message) {
	if !q.recursive {
		q.engine.cache.PutMany(msg.Answers)
		q.engine.cache.PutMany(msg.Authorities)
		q.engine.cache.PutMany(msg.Additional)
		q.finish(Outcome{Answers: Answers{Answers: msg.Answers, Authorities: msg.Authorities, Additional: msg.Additional}})
		return
	}

	direct := filterRR(msg.Answers, q.question.Name, q.question.Type)
	if len(direct) > 0 {
		q.engine.cache.PutMany(msg.Answers)
		q.finish(Outcome{Answers: Answers{Answers: direct, Authorities: msg.Authorities, Additional: msg.Additional}})
		return
	}

	if cname := findCNAME(msg.Answers, q.question.Name); cname != nil {
		q.engine.cache.PutMany(msg.Answers)
		q.cnameChainLen++
		if q.cnameChainLen > q.engine.maxCNAMEChain {
			q.finish(Outcome{Err: &Err{Kind: KindNoData, Message: "cname chain exceeded maximum length"}})
			return
		}
		q.question = wire.Question{Name: cname.Target, Type: q.question.Type, Class: q.question.Class}
		q.agentsRemaining = q.engine.delegationFromCache(cname.Target)
		if len(q.agentsRemaining) == 0 {
			q.agentsRemaining = append([]agent.Params(nil), q.engine.rootHints...)
		}
		q.sendNext()
		return
	}

	if nsNames := findNS(msg.Authorities); len(nsNames) > 0 {
		glue := findGlue(msg.Additional, nsNames, q.engine.dnsPort, q.engine.globalTimeout)
		if len(glue) > 0 {
			q.agentsRemaining = glue
			q.sendNext()
			return
		}
		q.resolveNSGlueless(nsNames)
		return
	}

	q.finish(Outcome{Err: &Err{Kind: KindNoData}})
}

func (q *Query) handleNameError(msg wire.Message) {
	authoritative := msg.Header.Flags&wire.FlagAA != 0
	if !q.recursive || authoritative {
		ttl, ok := extractSOAMinimum(msg.Authorities)
		if ok {
			q.engine.cache.PutNegative(q.question, wire.RCodeNXDomain, ttl)
		}
		q.finish(Outcome{Err: &Err{Kind: KindNameError}})
		return
	}
	if len(q.agentsRemaining) > 0 {
		q.sendNext()
		return
	}
	q.finish(Outcome{Err: &Err{Kind: KindNameError}})
}

// resolveNSGlueless resolves A records for each referred NS name via a
// chain of inner Queries (each sharing the Active-Query table with, but
// independent of, the outer Query), then continues the walk against
// whichever NS addresses it manages to find. Each inner Query's attempt
// log is kept as a UUID-tagged SubLog on the outer Query for diagnostics.
//
// Names are resolved one at a time, each inner ResolveAsync's callback
// driving the next step, rather than blocking the calling worker-pool
// goroutine on the inner query's result: a worker that parked on a
// channel read here would hold its pool slot until the very callback
// that needs a free slot to run could fire, which deadlocks once enough
// concurrent glueless referrals saturate the pool.
func (q *Query) resolveNSGlueless(nsNames []wire.Name) {
	q.resolveNSGluelessStep(nsNames, 0, nil)
}

func (q *Query) resolveNSGluelessStep(nsNames []wire.Name, i int, params []agent.Params) {
	if i >= len(nsNames) {
		q.finishGlueless(params)
		return
	}

	ns := nsNames[i]
	subQuestion := wire.Question{Name: ns, Type: wire.TypeA, Class: wire.ClassIN}
	q.engine.ResolveAsync(subQuestion, Options{Recursive: true}, func(o Outcome) {
		q.mu.Lock()
		if q.completed {
			q.mu.Unlock()
			return
		}
		q.subLogs = append(q.subLogs, SubLog{ID: uuid.NewString(), Question: subQuestion, Log: o.Log})
		q.mu.Unlock()

		if o.Ok() {
			params = append(params, ipAgentParams(o.Answers.Answers, string(ns), q.engine.dnsPort, q.engine.globalTimeout)...)
		}
		q.resolveNSGluelessStep(nsNames, i+1, params)
	})
}

// finishGlueless is resolveNSGluelessStep's terminal continuation, reached
// once every referred NS name has been tried (or the outer Query was
// cancelled mid-walk, in which case it is a no-op: sendNext itself also
// refuses to dial once q.completed is set, but checking here avoids even
// building the agentsRemaining slice for a query nothing will read).
func (q *Query) finishGlueless(params []agent.Params) {
	q.mu.Lock()
	completed := q.completed
	q.mu.Unlock()
	if completed {
		return
	}

	if len(params) == 0 {
		q.finish(Outcome{Err: &Err{Kind: KindNoData, Message: "could not resolve any referred NS address"}})
		return
	}
	q.agentsRemaining = params
	q.sendNext()
}
