// Package queue implements a durable, SQLite-backed job queue with a fixed
// worker pool, per-job retry with exponential backoff, and deduplication by
// job id. It is explicitly constructed and injectable: nothing in this
// package holds process-wide state.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// State is the queue-side lifecycle of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateDelayed   State = "delayed"
)

// States lists every job state, in reporting order.
var States = []State{StateWaiting, StateActive, StateCompleted, StateFailed, StateDelayed}

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue: closed")

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	state       TEXT NOT NULL DEFAULT 'waiting',
	attempts    INTEGER NOT NULL DEFAULT 0,
	next_run_at INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_state_run ON jobs (state, next_run_at, created_at);
`

// Job is one dequeued unit of work. Attempt is 1-based: the first delivery
// of a job carries Attempt == 1.
type Job struct {
	ID      string
	Payload []byte
	Attempt int
}

// Handler processes one job. A non-nil error reschedules the job with
// backoff until the attempt limit is reached, after which the job is marked
// failed.
type Handler func(ctx context.Context, job Job) error

// Options tunes the worker pool and retry policy. Zero values fall back to
// the defaults documented on each field.
type Options struct {
	Concurrency  int           // worker goroutines; default 10
	MaxAttempts  int           // total attempts per job; default 3
	BackoffBase  time.Duration // first retry delay, doubling per attempt; default 2s
	PollInterval time.Duration // idle claim-poll interval; default 100ms
}

func (o *Options) setDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
}

// Stats reports the number of jobs per state.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}

// Queue is a durable job queue. One job per id: enqueueing an id that is
// already present is a no-op, so the id doubles as a deduplication key.
type Queue struct {
	db   *sql.DB
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Open opens (or creates) the queue database at path and prepares the
// schema. Jobs left active by a previous crash are returned to waiting.
func Open(path string, opts Options, log *slog.Logger) (*Queue, error) {
	opts.setDefaults()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening queue db: %w", err)
	}
	// modernc's driver is safest with a single connection; the queue's
	// statements are all short single-row operations.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing queue schema: %w", err)
	}

	// Crash recovery: an active job means a worker died mid-run.
	if _, err := db.Exec(
		`UPDATE jobs SET state = ?, updated_at = ? WHERE state = ?`,
		StateWaiting, time.Now().UnixMilli(), StateActive,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("recovering active jobs: %w", err)
	}

	return &Queue{db: db, opts: opts, log: log}, nil
}

// Enqueue adds a job with the given dedup id. If a job with the id already
// exists in any state, the call is a no-op and reports false.
func (q *Queue) Enqueue(ctx context.Context, id string, payload []byte) (bool, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return false, ErrClosed
	}

	now := time.Now().UnixMilli()
	res, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO jobs (id, payload, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, payload, StateWaiting, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("enqueueing job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Start launches the worker pool. Workers claim jobs until ctx is cancelled
// or Close is called. Start may be called once.
func (q *Queue) Start(ctx context.Context, handler Handler) {
	q.mu.Lock()
	if q.started || q.closed {
		q.mu.Unlock()
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	q.mu.Unlock()

	for i := 0; i < q.opts.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	q.log.Info("queue workers started",
		"concurrency", q.opts.Concurrency,
		"maxAttempts", q.opts.MaxAttempts,
		"backoffBase", q.opts.BackoffBase)
}

// worker claims and runs jobs until the context is cancelled. One job runs
// end-to-end on one worker; there is no preemption mid-job.
func (q *Queue) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		job, ok, err := q.claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("claiming job", "error", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.opts.PollInterval):
			}
			continue
		}

		q.run(ctx, handler, job)
	}
}

// claim atomically moves the oldest runnable job to active and increments
// its attempt counter.
func (q *Queue) claim(ctx context.Context) (Job, bool, error) {
	now := time.Now().UnixMilli()

	row := q.db.QueryRowContext(ctx,
		`UPDATE jobs SET state = ?, attempts = attempts + 1, updated_at = ?
		 WHERE id = (
			SELECT id FROM jobs
			WHERE state = ? OR (state = ? AND next_run_at <= ?)
			ORDER BY created_at
			LIMIT 1
		 )
		 RETURNING id, payload, attempts`,
		StateActive, now, StateWaiting, StateDelayed, now,
	)

	var job Job
	if err := row.Scan(&job.ID, &job.Payload, &job.Attempt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, false, nil
		}
		return Job{}, false, err
	}
	return job, true, nil
}

// run executes the handler and settles the job: completed on success,
// delayed with doubled backoff on retryable failure, failed after the last
// attempt.
func (q *Queue) run(ctx context.Context, handler Handler, job Job) {
	err := handler(ctx, job)
	now := time.Now().UnixMilli()

	if err == nil {
		if _, uerr := q.db.Exec(
			`UPDATE jobs SET state = ?, updated_at = ? WHERE id = ?`,
			StateCompleted, now, job.ID,
		); uerr != nil {
			q.log.Error("marking job completed", "job", job.ID, "error", uerr)
		}
		return
	}

	if ctx.Err() != nil {
		// Shutdown interrupted the job; give the attempt back so the next
		// Open re-delivers it as a fresh attempt.
		if _, uerr := q.db.Exec(
			`UPDATE jobs SET state = ?, attempts = attempts - 1, updated_at = ? WHERE id = ?`,
			StateWaiting, now, job.ID,
		); uerr != nil {
			q.log.Error("returning interrupted job", "job", job.ID, "error", uerr)
		}
		return
	}

	if job.Attempt >= q.opts.MaxAttempts {
		q.log.Warn("job failed permanently",
			"job", job.ID, "attempts", job.Attempt, "error", err)
		if _, uerr := q.db.Exec(
			`UPDATE jobs SET state = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			StateFailed, err.Error(), now, job.ID,
		); uerr != nil {
			q.log.Error("marking job failed", "job", job.ID, "error", uerr)
		}
		return
	}

	// Backoff doubles per attempt: base, 2*base, 4*base, ...
	delay := q.opts.BackoffBase << (job.Attempt - 1)
	q.log.Info("job attempt failed, rescheduling",
		"job", job.ID, "attempt", job.Attempt, "retryIn", delay, "error", err)

	if _, uerr := q.db.Exec(
		`UPDATE jobs SET state = ?, last_error = ?, next_run_at = ?, updated_at = ? WHERE id = ?`,
		StateDelayed, err.Error(), now+delay.Milliseconds(), now, job.ID,
	); uerr != nil {
		q.log.Error("rescheduling job", "job", job.ID, "error", uerr)
	}
}

// Stats counts jobs per state.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return Stats{}, fmt.Errorf("counting jobs: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var state State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return Stats{}, err
		}
		switch state {
		case StateWaiting:
			stats.Waiting = n
		case StateActive:
			stats.Active = n
		case StateCompleted:
			stats.Completed = n
		case StateFailed:
			stats.Failed = n
		case StateDelayed:
			stats.Delayed = n
		}
	}
	return stats, rows.Err()
}

// Drain deletes all jobs in the given states.
func (q *Queue) Drain(ctx context.Context, states ...State) error {
	for _, state := range states {
		if _, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE state = ?`, state); err != nil {
			return fmt.Errorf("draining %s jobs: %w", state, err)
		}
	}
	return nil
}

// DrainAll deletes every job regardless of state.
func (q *Queue) DrainAll(ctx context.Context) error {
	return q.Drain(ctx, States...)
}

// Close stops the workers, waits for in-flight jobs, and closes the
// database. In-flight jobs interrupted by shutdown are recovered to waiting
// on the next Open.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	return q.db.Close()
}
