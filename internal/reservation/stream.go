package reservation

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DefaultQueryBufferSize bounds how far a query producer may run ahead of its consumer.
const DefaultQueryBufferSize = 128

// QueryResult is one item of a streamed query: a reservation or a row-level error.
type QueryResult struct {
	Reservation *Reservation
	Err         error
}

// queryRunner opens the cursor for a streamed query.
type queryRunner func(ctx context.Context) (pgx.Rows, error)

// startStream runs the producer in its own goroutine and returns the consuming end.
// The consumer stops the producer by cancelling ctx; the producer notices on its next
// send, closes the rows and closes the channel.
func startStream(ctx context.Context, bufferSize int, run queryRunner) <-chan QueryResult {
	if bufferSize <= 0 {
		bufferSize = DefaultQueryBufferSize
	}
	out := make(chan QueryResult, bufferSize)
	go produce(ctx, run, out)
	return out
}

func produce(ctx context.Context, run queryRunner, out chan<- QueryResult) {
	defer close(out)

	rows, err := run(ctx)
	if err != nil {
		send(ctx, out, QueryResult{Err: classifyError(err)})
		return
	}
	defer rows.Close()

	for rows.Next() {
		res, err := scanReservation(rows)
		var item QueryResult
		if err != nil {
			item.Err = classifyError(err)
		} else {
			item.Reservation = res
		}
		if !send(ctx, out, item) {
			return
		}
	}
	if err := rows.Err(); err != nil {
		send(ctx, out, QueryResult{Err: classifyError(err)})
	}
}

// send blocks until the item is delivered or the consumer has gone away.
func send(ctx context.Context, out chan<- QueryResult, item QueryResult) bool {
	// select picks randomly among ready cases; a free buffer slot must not win over cancellation.
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
