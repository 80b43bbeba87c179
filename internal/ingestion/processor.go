package ingestion

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/observability/metrics"

	"go.uber.org/zap"
)

const (
	defaultProcessorWorkers = 4
	defaultProcessorBuffer  = 512
	processTimeout          = 10 * time.Second
)

type job struct {
	source string
	msg    *StatusReportMessage
}

// Processor feeds broker payloads into the Service through a fixed set of
// workers. Reports for one device always land on the same worker so they are
// applied in arrival order.
type Processor struct {
	service *Service
	queues  []chan job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewProcessor creates a processor; non-positive sizes fall back to defaults.
func NewProcessor(service *Service, workerCount, bufferSize int) *Processor {
	if workerCount <= 0 {
		workerCount = defaultProcessorWorkers
	}
	if bufferSize <= 0 {
		bufferSize = defaultProcessorBuffer
	}
	perWorker := bufferSize / workerCount
	if perWorker < 1 {
		perWorker = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	queues := make([]chan job, workerCount)
	for i := range queues {
		queues[i] = make(chan job, perWorker)
	}

	return &Processor{
		service: service,
		queues:  queues,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *Processor) Start() {
	logger.Info("Starting status processor", zap.Int("workers", len(p.queues)))
	for i, queue := range p.queues {
		p.wg.Add(1)
		go p.worker(i, queue)
	}
}

// Stop drains queued reports and waits for the workers to exit.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, queue := range p.queues {
		close(queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	logger.Info("Status processor stopped")
}

// Submit decodes a payload and queues it. It never blocks: a full queue drops the report.
func (p *Processor) Submit(source string, payload []byte) bool {
	m := p.service.Metrics()
	m.Update(func(im *IngestMetrics) { im.ReportsReceived++ })

	msg, err := ParseStatusReport(payload)
	if err != nil {
		m.Update(func(im *IngestMetrics) { im.ReportsRejected++ })
		metrics.ObserveStatusReport(source, "rejected", 0)
		logger.Warn("Invalid status payload", zap.String("source", source), zap.Error(err))
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	queue := p.queues[p.shard(msg)]
	select {
	case queue <- job{source: source, msg: msg}:
		m.Update(func(im *IngestMetrics) { im.QueueDepth = p.depth() })
		return true
	default:
		m.Update(func(im *IngestMetrics) { im.ReportsDropped++ })
		metrics.ObserveStatusReport(source, "dropped", 0)
		logger.Warn("Status queue full, dropping report",
			zap.String("device_type", msg.Type),
			zap.String("device_id", msg.DeviceID),
		)
		return false
	}
}

func (p *Processor) shard(msg *StatusReportMessage) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(msg.Type))
	_, _ = h.Write([]byte{'/'})
	_, _ = h.Write([]byte(msg.DeviceID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *Processor) depth() int {
	total := 0
	for _, queue := range p.queues {
		total += len(queue)
	}
	return total
}

func (p *Processor) worker(id int, queue <-chan job) {
	defer p.wg.Done()

	for j := range queue {
		p.process(id, j)
	}
}

func (p *Processor) process(id int, j job) {
	ctx, cancel := context.WithTimeout(p.ctx, processTimeout)
	defer cancel()

	report, err := p.service.Prepare(j.msg, "")
	if err != nil {
		p.service.Metrics().Update(func(im *IngestMetrics) { im.ReportsRejected++ })
		metrics.ObserveStatusReport(j.source, "rejected", 0)
		logger.Warn("Rejected status report", zap.Int("worker", id), zap.String("source", j.source), zap.Error(err))
		return
	}

	// Ingest logs its own failures.
	_, _ = p.service.Ingest(ctx, j.source, report)
}

// GetMetrics returns current ingestion counters.
func (p *Processor) GetMetrics() IngestMetrics {
	return p.service.Metrics().Snapshot()
}
