package store

import (
	"context"
	"sync"
)

// Live is a continuously refreshed query result. C receives the current
// result immediately and a fresh one after every commit that touches a
// watched table. A consumer that falls behind only ever sees the latest
// snapshot. C is closed after Cancel, after ctx ends, or after a query error.
type Live[T any] struct {
	C <-chan T

	sub *Subscription

	mu  sync.Mutex
	err error
}

// Watch starts a live query. query runs outside of any transaction held by
// the caller and must not block on the watched store's write lock.
func Watch[T any](ctx context.Context, s *Store, query func(ctx context.Context) (T, error), tables ...Table) *Live[T] {
	// Subscribe before the first query so no commit falls between them.
	sub := s.Subscribe(tables...)
	out := make(chan T, 1)
	l := &Live[T]{C: out, sub: sub}

	go func() {
		defer close(out)
		defer sub.Cancel()

		for {
			v, err := query(ctx)
			if err != nil {
				l.setErr(err)
				return
			}

			// Replace any unread snapshot. This goroutine is the only sender.
			select {
			case <-out:
			default:
			}
			out <- v

			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C:
				if !ok {
					return
				}
			}
		}
	}()

	return l
}

// Cancel stops the live query and closes C.
func (l *Live[T]) Cancel() {
	l.sub.Cancel()
}

// Err returns the query error that ended the live query, if any.
func (l *Live[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Live[T]) setErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}
