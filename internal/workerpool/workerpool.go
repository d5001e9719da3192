package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vrnvu/dbfacade/internal/client"
	"github.com/vrnvu/dbfacade/internal/config"
	"github.com/vrnvu/dbfacade/internal/logger"
	"github.com/vrnvu/dbfacade/internal/metrics"
	"github.com/vrnvu/dbfacade/internal/statement"
)

// MaxWorkers is the upper bound of workers in a pool
const MaxWorkers = config.MaxWorkers

// ErrRecorderFull stops a run whose recorder cannot take another response
var ErrRecorderFull = errors.New("metrics recorder is full")

// bounded is implemented by recorders with a fixed capacity, such as metrics.Simple
type bounded interface {
	Full() bool
}

// Outcome is what happened to a single statement
type Outcome struct {
	WorkerID  int
	Statement statement.Statement
	// Exec is set for statement.KindExec, Query for statement.KindQuery
	Exec     *client.ExecResult
	Query    *client.QueryResult
	Duration time.Duration
	Err      error
}

// WorkerPool runs the statements of a Reader on a Client with a fixed number of workers
// Strategy: fixed key to worker, or else round robin
// For example: 4 workers, 4 statement channels
// We map workers to statement channels:
// statements = [chan, chan, chan, chan]
// - worker 0: statement channel 0
// - worker 1: statement channel 1
// - worker 2: statement channel 2
// - worker 3: statement channel 3
// When we read a statement, we map its key (the table) to a channel or else round robin
// Example:
// INSERT INTO users -> statement channel 0
// INSERT INTO orders -> statement channel 1
// SELECT FROM users -> statement channel 0
// UPDATE items -> statement channel 2
// Statements without a key always go to channel 0
// So statements on the same table run in script order
type WorkerPool struct {
	numWorkers     int
	client         client.Client
	reader         statement.Reader
	mapKeyToWorker map[string]int
	lastWorkerIdx  int
	statements     []chan statement.Statement
	results        chan Outcome
	metrics        metrics.Recorder
	onResult       func(Outcome)
	stopOnError    bool
	stopErr        error
	log            logger.Logger
}

// Option configures a WorkerPool
type Option func(*WorkerPool)

// WithOnResult is called for every statement, from a single goroutine
func WithOnResult(f func(Outcome)) Option {
	return func(wp *WorkerPool) {
		wp.onResult = f
	}
}

// WithStopOnError cancels the run at the first failed statement
func WithStopOnError(stop bool) Option {
	return func(wp *WorkerPool) {
		wp.stopOnError = stop
	}
}

// WithRecorder replaces the default Reservoir, only the collecting goroutine uses it
// A recorder with a Full method stops the run with ErrRecorderFull instead of overflowing
func WithRecorder(r metrics.Recorder) Option {
	return func(wp *WorkerPool) {
		wp.metrics = r
	}
}

func WithLogger(l logger.Logger) Option {
	return func(wp *WorkerPool) {
		wp.log = l
	}
}

// New creates a new WorkerPool with the given number of workers
func New(numWorkers int, c client.Client, reader statement.Reader, opts ...Option) (*WorkerPool, error) {
	if numWorkers < 1 {
		return nil, fmt.Errorf("number of workers must be greater than 0")
	}

	if numWorkers > MaxWorkers {
		return nil, fmt.Errorf("number of workers must be at most %d", MaxWorkers)
	}

	statements := make([]chan statement.Statement, numWorkers)
	for i := range numWorkers {
		statements[i] = make(chan statement.Statement)
	}

	wp := &WorkerPool{
		numWorkers:     numWorkers,
		client:         c,
		reader:         reader,
		mapKeyToWorker: make(map[string]int),
		results:        make(chan Outcome),
		metrics:        metrics.NewReservoir(nil),
		statements:     statements,
		log:            logger.Discard(),
	}

	for _, opt := range opts {
		opt(wp)
	}

	return wp, nil
}

// Run reads every statement, runs them and returns the aggregated metrics
// A WorkerPool runs once
// A cancelled context stops dispatching and returns ctx.Err() with the metrics so far
// A reader error stops dispatching and is returned once in-flight statements finish
func (wp *WorkerPool) Run(ctx context.Context) (metrics.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workers sync.WaitGroup
	for i := range wp.numWorkers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker(ctx, i, wp.client, wp.statements[i], wp.results)
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wp.collect(cancel)
	}()

	dispatchErr := wp.dispatch(ctx)

	wp.close()
	workers.Wait()
	close(wp.results)
	<-done

	result := wp.metrics.Aggregate()
	if wp.stopErr != nil {
		return result, wp.stopErr
	}

	return result, dispatchErr
}

func (wp *WorkerPool) dispatch(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s, hasMore, err := wp.reader.Next()
		if err != nil {
			wp.log.Error("Failed to read statement", logger.Ctx{"err": err})
			return fmt.Errorf("failed to read statement: %w", err)
		}
		if !hasMore {
			return nil
		}

		if err := sendStatement(ctx, wp.statements[wp.getWorker(s.Key)], s); err != nil {
			return err
		}
	}
}

// getWorker returns the worker for key, assigning one round robin on first use
// Thread safety: only the dispatching goroutine calls it
func (wp *WorkerPool) getWorker(key string) int {
	if key == "" {
		return 0
	}

	if idx, ok := wp.mapKeyToWorker[key]; ok {
		return idx
	}

	idx := wp.lastWorkerIdx
	wp.lastWorkerIdx = (wp.lastWorkerIdx + 1) % wp.numWorkers
	wp.mapKeyToWorker[key] = idx
	return idx
}

func sendStatement(ctx context.Context, ch chan<- statement.Statement, s statement.Statement) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- s:
		return nil
	}
}

// collect records every outcome, it is the only goroutine touching the metrics
func (wp *WorkerPool) collect(cancel context.CancelFunc) {
	for outcome := range wp.results {
		if outcome.Err != nil {
			if errors.Is(outcome.Err, client.ErrEmptyStatement) {
				wp.metrics.AddSkipped()
			} else {
				wp.metrics.AddFailed()
			}
			wp.log.Warn("Statement failed", logger.Ctx{
				"line":   outcome.Statement.Line,
				"worker": outcome.WorkerID,
				"err":    outcome.Err,
			})
			if wp.stopOnError && wp.stopErr == nil {
				wp.stopErr = fmt.Errorf("line %d: %w", outcome.Statement.Line, outcome.Err)
				cancel()
			}
		} else if b, ok := wp.metrics.(bounded); ok && b.Full() {
			if wp.stopErr == nil {
				wp.log.Error("Metrics recorder is full, stopping", logger.Ctx{"line": outcome.Statement.Line})
				wp.stopErr = fmt.Errorf("line %d: %w", outcome.Statement.Line, ErrRecorderFull)
				cancel()
			}
		} else {
			wp.metrics.AddResponse(outcome.Duration)
		}

		if wp.onResult != nil {
			wp.onResult(outcome)
		}
	}
}

// close all the statement channels in order to terminate the workers
// Thread safety: all the channels are closed in a single goroutine, so there is no race condition
func (wp *WorkerPool) close() {
	for _, ch := range wp.statements {
		close(ch)
	}
}

func worker(ctx context.Context, id int, c client.Client, statements <-chan statement.Statement, results chan<- Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-statements:
			if !ok {
				return
			}
			results <- run(ctx, id, c, s)
		}
	}
}

func run(ctx context.Context, id int, c client.Client, s statement.Statement) Outcome {
	outcome := Outcome{WorkerID: id, Statement: s}

	switch s.Kind {
	case statement.KindQuery:
		res, err := c.Query(ctx, s.Text)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Query = res
		outcome.Duration = res.Duration
	default:
		res, err := c.Exec(ctx, s.Text)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Exec = &res
		outcome.Duration = res.Duration
	}

	return outcome
}
