package docstore

import "context"

// Watch subscribes fn to q and blocks until ctx ends, then tears the subscription down.
func Watch(ctx context.Context, store Store, collection string, q Query, fn Listener) error {
	unsubscribe, err := store.Subscribe(ctx, collection, q, fn)
	if err != nil {
		return err
	}
	defer unsubscribe()

	<-ctx.Done()
	return nil
}
