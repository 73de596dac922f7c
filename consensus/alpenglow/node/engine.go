package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/alpenglow/engine"
	"github.com/onflow/alpenglow/engine/common/fifoqueue"
	"github.com/onflow/alpenglow/module"
	"github.com/onflow/alpenglow/module/component"
	"github.com/onflow/alpenglow/module/irrecoverable"
	"github.com/onflow/alpenglow/module/metrics"
)

// defaultInboxCapacity is the maximum number of queued node messages.
const defaultInboxCapacity = 100_000

var ErrInboxFull = errors.New("engine inbox is full")

type reply struct {
	value interface{}
	err   error
}

type envelope struct {
	msg   interface{}
	reply chan<- reply
}

// Engine runs a Node on a single worker goroutine. Messages are queued and
// handled strictly in arrival order; handler errors are logged and do not
// stop the engine.
type Engine struct {
	*component.ComponentManager
	log      zerolog.Logger
	node     *Node
	inbox    *fifoqueue.FifoQueue[envelope]
	notifier engine.Notifier
}

var _ component.Component = (*Engine)(nil)

type EngineOption func(*engineConfig)

type engineConfig struct {
	inboxCapacity int
}

// WithInboxCapacity bounds the number of queued messages.
func WithInboxCapacity(capacity int) EngineOption {
	return func(c *engineConfig) {
		c.inboxCapacity = capacity
	}
}

// NewEngine wraps node. The collector observes the inbox length and may be nil.
func NewEngine(log zerolog.Logger, node *Node, collector module.IntegrationMetrics, opts ...EngineOption) (*Engine, error) {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	cfg := engineConfig{inboxCapacity: defaultInboxCapacity}
	for _, apply := range opts {
		apply(&cfg)
	}
	inbox, err := fifoqueue.NewFifoQueue[envelope](
		fifoqueue.WithCapacity(cfg.inboxCapacity),
		fifoqueue.WithLengthObserver(collector.InboundQueueLength),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inbox: %w", err)
	}

	e := &Engine{
		log:      log.With().Str("engine", "alpenglow").Uint32("validator", uint32(node.ID())).Logger(),
		node:     node,
		inbox:    inbox,
		notifier: engine.NewNotifier(),
	}
	e.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(e.processLoop).
		Build()
	return e, nil
}

// Node returns the wrapped node. It must only be inspected once the engine
// has stopped, or before it started.
func (e *Engine) Node() *Node {
	return e.node
}

// Submit queues msg without waiting for it to be handled.
func (e *Engine) Submit(msg interface{}) error {
	if !e.inbox.Push(envelope{msg: msg}) {
		return ErrInboxFull
	}
	e.notifier.Notify()
	return nil
}

// Request queues msg and waits for the node's reply.
func (e *Engine) Request(ctx context.Context, msg interface{}) (interface{}, error) {
	replies := make(chan reply, 1)
	if !e.inbox.Push(envelope{msg: msg, reply: replies}) {
		return nil, ErrInboxFull
	}
	e.notifier.Notify()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-replies:
		return r.value, r.err
	}
}

func (e *Engine) processLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	doneSignal := ctx.Done()
	newMessageSignal := e.notifier.Channel()
	for {
		select {
		case <-doneSignal:
			return
		case <-newMessageSignal:
			e.processInbox(ctx)
		}
	}
}

// processInbox handles queued messages until the inbox is empty or the
// engine is shutting down.
func (e *Engine) processInbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, ok := e.inbox.Pop()
		if !ok {
			return
		}
		value, err := e.node.Handle(env.msg)
		if err != nil {
			e.log.Warn().
				Err(err).
				Str("message", fmt.Sprintf("%T", env.msg)).
				Msg("could not handle message")
		}
		if env.reply != nil {
			env.reply <- reply{value: value, err: err}
		}
		if tick, isTick := env.msg.(Tick); isTick && tick.Reschedule && err == nil {
			e.reschedule(tick)
		}
	}
}

// reschedule queues the next self-rescheduled tick. The clock stops if the
// inbox is full.
func (e *Engine) reschedule(tick Tick) bool {
	if !e.inbox.Push(envelope{msg: tick}) {
		e.log.Warn().
			Uint64("clock", e.node.Clock()).
			Int("inbox", e.inbox.Len()).
			Msg("inbox full, self-rescheduling clock stopped")
		return false
	}
	return true
}
