package sqlutil

import (
	"database/sql"
	"errors"

	"go.uber.org/atomic"
)

// The Writer serialises database writes for drivers that only support a
// single writer, e.g. SQLite. PostgreSQL does not need this so it uses a
// dummy writer that runs the function in-place.
type Writer interface {
	// Do queues a task and waits for it to complete before returning.
	Do(db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error
}

// DummyWriter runs the write directly on the calling goroutine.
type DummyWriter struct{}

func NewDummyWriter() Writer {
	return &DummyWriter{}
}

func (w *DummyWriter) Do(db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error {
	if db != nil && txn == nil {
		return WithTransaction(db, f)
	}
	return f(txn)
}

// ExclusiveWriter funnels all writes through a single goroutine so that
// writes never race on a SQLite database handle.
type ExclusiveWriter struct {
	running atomic.Bool
	todo    chan transactionWriterTask
}

func NewExclusiveWriter() Writer {
	return &ExclusiveWriter{
		todo: make(chan transactionWriterTask),
	}
}

// transactionWriterTask represents a specific task.
type transactionWriterTask struct {
	db   *sql.DB
	txn  *sql.Tx
	f    func(txn *sql.Tx) error
	wait chan error
}

// Do queues the write and blocks until the writer goroutine has run it,
// returning whatever error the task produced.
func (w *ExclusiveWriter) Do(db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error {
	if w.todo == nil {
		return errors.New("not initialised")
	}
	if w.running.CompareAndSwap(false, true) {
		go w.run()
	}
	task := transactionWriterTask{
		db:   db,
		txn:  txn,
		f:    f,
		wait: make(chan error, 1),
	}
	w.todo <- task
	return <-task.wait
}

func (w *ExclusiveWriter) run() {
	for task := range w.todo {
		if task.db != nil && task.txn != nil {
			task.wait <- task.f(task.txn)
		} else if task.db != nil && task.txn == nil {
			task.wait <- WithTransaction(task.db, task.f)
		} else {
			task.wait <- task.f(nil)
		}
		close(task.wait)
	}
}
