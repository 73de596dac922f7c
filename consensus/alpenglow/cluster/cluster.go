package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/node"
	"github.com/onflow/alpenglow/module"
	"github.com/onflow/alpenglow/module/irrecoverable"
	"github.com/onflow/alpenglow/module/metrics"
	"github.com/onflow/alpenglow/module/util"
	"github.com/onflow/alpenglow/storage"
)

const defaultWorkers = 8

var ErrUnknownValidator = errors.New("validator outside the cluster")

type config struct {
	workers    int
	registerer prometheus.Registerer
	snapshots  storage.Snapshots
}

type Option func(*config)

// WithWorkers sets how many engines are driven concurrently.
func WithWorkers(workers int) Option {
	return func(c *config) {
		c.workers = workers
	}
}

// WithRegisterer exposes one set of integration metrics per validator.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = registerer
	}
}

// WithSnapshots enables Checkpoint.
func WithSnapshots(snapshots storage.Snapshots) Option {
	return func(c *config) {
		c.snapshots = snapshots
	}
}

// Cluster runs one engine per validator of the committee in a single
// process. Certificates propagated by a validator reach the others through
// the Hub.
type Cluster struct {
	log       zerolog.Logger
	hub       *Hub
	engines   []*node.Engine
	pool      *workerpool.WorkerPool
	snapshots storage.Snapshots
}

func New(log zerolog.Logger, cfg model.Config, params node.Parameters, opts ...Option) (*Cluster, error) {
	conf := config{workers: defaultWorkers}
	for _, opt := range opts {
		opt(&conf)
	}
	if conf.workers < 1 {
		return nil, fmt.Errorf("need at least one worker, got %d", conf.workers)
	}

	hub := NewHub(log)
	engines := make([]*node.Engine, 0, cfg.Validators)
	for i := 0; i < cfg.Validators; i++ {
		id := model.ValidatorID(i)
		var collector module.IntegrationMetrics = metrics.NewNoopCollector()
		if conf.registerer != nil {
			collector = metrics.NewIntegrationCollector(conf.registerer, id)
		}
		n, err := node.New(log, id, cfg, params, node.WithBroadcaster(hub), node.WithMetrics(collector))
		if err != nil {
			return nil, fmt.Errorf("could not create node %d: %w", id, err)
		}
		e, err := node.NewEngine(log, n, collector)
		if err != nil {
			return nil, fmt.Errorf("could not create engine %d: %w", id, err)
		}
		engines = append(engines, e)
	}
	hub.Attach(engines...)

	return &Cluster{
		log:       log.With().Str("component", "alpenglow_cluster").Logger(),
		hub:       hub,
		engines:   engines,
		pool:      workerpool.New(conf.workers),
		snapshots: conf.snapshots,
	}, nil
}

// Size returns the number of validators.
func (c *Cluster) Size() int {
	return len(c.engines)
}

// Engine returns the engine of the validator.
func (c *Cluster) Engine(id model.ValidatorID) (*node.Engine, error) {
	if int(id) >= len(c.engines) {
		return nil, fmt.Errorf("validator %d: %w", id, ErrUnknownValidator)
	}
	return c.engines[id], nil
}

func (c *Cluster) Start(ctx irrecoverable.SignalerContext) {
	for _, e := range c.engines {
		e.Start(ctx)
	}
}

func (c *Cluster) Ready() <-chan struct{} {
	return util.AllReady(c.components()...)
}

func (c *Cluster) Done() <-chan struct{} {
	return util.AllDone(c.components()...)
}

// Stop waits for the running requests and releases the worker pool. The
// engines stop with the context they were started with.
func (c *Cluster) Stop() {
	c.pool.StopWait()
}

func (c *Cluster) components() []module.ReadyDoneAware {
	components := make([]module.ReadyDoneAware, 0, len(c.engines))
	for _, e := range c.engines {
		components = append(components, e)
	}
	return components
}

func (c *Cluster) Initialize(ctx context.Context) error {
	_, err := c.requestAll(ctx, node.Initialize{})
	return err
}

// Tick advances every validator by rounds ticks. The validators move in
// lock step: a round starts once every validator finished the previous one.
func (c *Cluster) Tick(ctx context.Context, rounds int) error {
	for i := 0; i < rounds; i++ {
		_, err := c.requestAll(ctx, node.Tick{})
		if err != nil {
			return fmt.Errorf("round %d: %w", i, err)
		}
	}
	return nil
}

// Send queues the message on the recipient's simulated network.
func (c *Cluster) Send(msg model.Message) error {
	e, err := c.Engine(msg.Recipient)
	if err != nil {
		return err
	}
	return e.Submit(node.SendMessage{Message: msg})
}

// Propose hands the block to every validator.
func (c *Cluster) Propose(ctx context.Context, block model.Block) error {
	_, err := c.requestAll(ctx, node.BlockProposal{Block: block})
	return err
}

// Certify has the validator propagate a certificate it formed. The other
// validators receive it through the hub.
func (c *Cluster) Certify(ctx context.Context, from model.ValidatorID, cert model.Certificate) error {
	e, err := c.Engine(from)
	if err != nil {
		return err
	}
	_, err = e.Request(ctx, node.PropagateCertificate{Certificate: cert})
	return err
}

// Reports returns the benchmark report of every validator, ordered by validator.
func (c *Cluster) Reports(ctx context.Context) ([]*node.BenchmarkReport, error) {
	values, err := c.requestAll(ctx, node.RequestPerformanceReport{})
	if err != nil {
		return nil, err
	}
	reports := make([]*node.BenchmarkReport, 0, len(values))
	for _, v := range values {
		reports = append(reports, v.(*node.BenchmarkReport))
	}
	return reports, nil
}

// Export returns the formal snapshot of every validator, ordered by validator.
func (c *Cluster) Export(ctx context.Context) ([]*formal.Snapshot, error) {
	values, err := c.requestAll(ctx, node.RequestFormalExport{})
	if err != nil {
		return nil, err
	}
	snaps := make([]*formal.Snapshot, 0, len(values))
	for _, v := range values {
		snaps = append(snaps, v.(*formal.Snapshot))
	}
	return snaps, nil
}

// Checkpoint exports every validator and stores the snapshots. A snapshot
// already stored at the same clock is skipped. It returns the number of
// snapshots stored.
func (c *Cluster) Checkpoint(ctx context.Context) (int, error) {
	if c.snapshots == nil {
		return 0, fmt.Errorf("cluster has no snapshot storage")
	}
	snaps, err := c.Export(ctx)
	if err != nil {
		return 0, err
	}
	stored := 0
	for _, snap := range snaps {
		err := c.snapshots.Store(snap)
		if errors.Is(err, storage.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return stored, fmt.Errorf("could not store snapshot of validator %d: %w", snap.ValidatorID, err)
		}
		stored++
	}
	c.log.Debug().Int("stored", stored).Msg("checkpoint written")
	return stored, nil
}

// requestAll sends one request to every engine and waits for all replies.
// Errors of all validators are combined.
func (c *Cluster) requestAll(ctx context.Context, msg interface{}) ([]interface{}, error) {
	values := make([]interface{}, len(c.engines))
	var (
		mu   sync.Mutex
		errs *multierror.Error
		wg   sync.WaitGroup
	)
	for i, e := range c.engines {
		i, e := i, e
		wg.Add(1)
		c.pool.Submit(func() {
			defer wg.Done()
			value, err := e.Request(ctx, msg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("validator %d: %w", i, err))
				return
			}
			values[i] = value
		})
	}
	wg.Wait()
	return values, errs.ErrorOrNil()
}
