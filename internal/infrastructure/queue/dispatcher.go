package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/healthvault/auth-service/internal/core/ports"
	"github.com/healthvault/auth-service/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 64
)

// ErrStopped is returned by Send once the dispatcher has shut down.
var ErrStopped = errors.New("delivery dispatcher stopped")

type job struct {
	ctx   context.Context
	msg   ports.Notification
	reply chan error
}

// Dispatcher routes passcode deliveries to a fixed set of workers using
// consistent hashing on the recipient address. A worker hands each job to
// the lane of its address: one goroutine per address with deliveries in
// flight, sending that address's codes in the order they were issued. A
// slow or retrying address therefore never holds up other addresses on the
// same shard. Outbound sends share one rate limit.
// Dispatcher itself satisfies ports.Notifier: Send blocks until the lane
// reports the transport's result.
type Dispatcher struct {
	workers []chan job
	sender  ports.Notifier
	limiter *rate.Limiter
	log     zerolog.Logger

	mu    sync.Mutex
	lanes map[string][]job // address -> jobs waiting behind the one in flight

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ports.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers that
// hand messages to sender. ratePerSec <= 0 disables throttling.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, ratePerSec float64, sender ports.Notifier, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	limit := rate.Inf
	burst := 0
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = max(1, int(ratePerSec))
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		sender:  sender,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
		lanes:   make(map[string][]job),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Stop makes further Sends fail with ErrStopped and waits for workers and
// in-flight deliveries to finish. Jobs not yet started are answered with
// ErrStopped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
		close(d.stopped)
	})
}

// Send queues msg on the worker owning its address and waits for the result.
func (d *Dispatcher) Send(ctx context.Context, msg ports.Notification) error {
	j := job{ctx: ctx, msg: msg, reply: make(chan error, 1)}
	idx := d.shardIndex(msg.Email)

	select {
	case <-d.done:
		return ErrStopped
	default:
	}

	select {
	case d.workers[idx] <- j:
		metrics.DeliveryQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}

	select {
	case err := <-j.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		select {
		case err := <-j.reply:
			return err
		default:
			return ErrStopped
		}
	}
}

// shardIndex maps an address deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch chan job) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			d.drain(ch, ctx.Err())
			return
		case <-d.done:
			d.drain(ch, ErrStopped)
			return
		case j := <-ch:
			metrics.DeliveryQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.enqueue(ctx, j, id)
		}
	}
}

// enqueue appends j to its address's lane, starting the lane if the address
// has nothing in flight.
func (d *Dispatcher) enqueue(ctx context.Context, j job, workerID int) {
	d.mu.Lock()
	if pending, busy := d.lanes[j.msg.Email]; busy {
		d.lanes[j.msg.Email] = append(pending, j)
		d.mu.Unlock()
		return
	}
	d.lanes[j.msg.Email] = nil
	d.mu.Unlock()

	d.wg.Add(1)
	go d.runLane(ctx, j, workerID)
}

// runLane delivers j and then every job queued behind it for the same
// address, one at a time.
func (d *Dispatcher) runLane(ctx context.Context, j job, workerID int) {
	defer d.wg.Done()
	email := j.msg.Email
	for {
		j.reply <- d.laneResult(ctx, j, workerID)

		d.mu.Lock()
		pending := d.lanes[email]
		if len(pending) == 0 {
			delete(d.lanes, email)
			d.mu.Unlock()
			return
		}
		j = pending[0]
		d.lanes[email] = pending[1:]
		d.mu.Unlock()
	}
}

func (d *Dispatcher) laneResult(ctx context.Context, j job, workerID int) error {
	select {
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return d.deliver(j, workerID)
}

func (d *Dispatcher) deliver(j job, workerID int) error {
	result := "sent"
	err := d.limiter.Wait(j.ctx)
	if err == nil {
		err = d.sender.Send(j.ctx, j.msg)
	}
	if err != nil {
		result = "failed"
		d.log.Error().Err(err).
			Str("purpose", string(j.msg.Purpose)).
			Int("worker_id", workerID).
			Msg("passcode delivery failed")
	}
	metrics.DeliveriesTotal.WithLabelValues(string(j.msg.Purpose), result).Inc()
	return err
}

func (d *Dispatcher) drain(ch chan job, err error) {
	for {
		select {
		case j := <-ch:
			j.reply <- err
		default:
			return
		}
	}
}
