package db

import (
	"context"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
)

// TxFn is a unit of work executed inside a write transaction.
type TxFn func(ctx context.Context, tx *sqlx.Tx) error

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

// ErrClosed is returned by Do once Close has been called.
var ErrClosed = errors.New("db worker closed")

// Worker is the single writer for the SQLite database. Every mutating
// statement goes through Do so transactions never interleave.
type Worker struct {
	db        *sqlx.DB
	jobs      chan job
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewWorker(db *sqlx.DB) *Worker {
	w := &Worker{
		db:      db,
		jobs:    make(chan job, 256),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close stops accepting work, lets the running transaction finish and
// fails anything still queued with ErrClosed. Safe to call twice.
func (w *Worker) Close() {
	w.closeOnce.Do(func() { close(w.closing) })
	<-w.done
}

// Do enqueues fn and waits for its transaction to commit or roll back.
// The transaction is bound to ctx, so cancellation before commit rolls it
// back and surfaces as the job's error. Once enqueued, Do always reports
// the job's own outcome: a nil return means committed, an error means not
// applied.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	select {
	case <-w.closing:
		return ErrClosed
	default:
	}

	select {
	case w.jobs <- j:
	case <-w.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-ch:
		return err
	case <-w.done:
		select {
		case err := <-ch:
			return err
		default:
			return ErrClosed
		}
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for {
		select {
		case j := <-w.jobs:
			j.ch <- w.run(j)
		case <-w.closing:
			for {
				select {
				case j := <-w.jobs:
					j.ch <- ErrClosed
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) run(j job) error {
	if err := j.ctx.Err(); err != nil {
		return err
	}

	tx, err := w.db.BeginTxx(j.ctx, nil)
	if err != nil {
		return err
	}
	if err := j.fn(j.ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
