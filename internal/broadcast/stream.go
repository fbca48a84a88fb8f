package broadcast

import "context"

// Stream consumes a subscription until ctx is done, forwarding each event
// that passes the filter to emit. A nil filter forwards everything. The
// subscription is closed before Stream returns, and the forwarding error,
// if any, is returned so callers can distinguish a dead consumer from a
// cancelled context.
func Stream[T any](ctx context.Context, sub *Subscription[T], filter func(T) bool, emit func(T) error) error {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-sub.Events():
			if filter != nil && !filter(event) {
				continue
			}
			if err := emit(event); err != nil {
				return err
			}
		}
	}
}
