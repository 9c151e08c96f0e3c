package fn

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrFunc is a type def for a function that takes a context (to allow early
// cancellation) and a series of value returning an error. This is typically
// used a closure to perform concurrent work over a homogeneous slice of
// values.
type ErrFunc[V any] func(context.Context, V) error

// ParSlice can be used to execute a function on each element of a slice in
// parallel. This function is fully blocking and will wait for all goroutines
// to either succeed, or for the first to error out. Active goroutines are
// limited to the number of CPUs. The context passed to f is canceled the
// first time f returns a non-nil error.
func ParSlice[V any](ctx context.Context, s []V, f ErrFunc[V]) error {
	errGroup, ctx := errgroup.WithContext(ctx)
	errGroup.SetLimit(runtime.NumCPU())

	for _, v := range s {
		v := v
		errGroup.Go(func() error {
			return f(ctx, v)
		})
	}

	return errGroup.Wait()
}

// IndexedFunc is a function applied to the i-th element of a slice.
type IndexedFunc[I, O any] func(ctx context.Context, i int, v I) (O, error)

// ParMapAll applies f to every element of s concurrently. Unlike ParSlice, a
// failure does not cancel the remaining calls: every call runs to completion
// and the results and errors are returned positionally, so out[i] and errs[i]
// always belong to s[i] regardless of completion order. A limit of zero or
// less means no limit.
func ParMapAll[I, O any](ctx context.Context, s []I, limit int,
	f IndexedFunc[I, O]) ([]O, []error) {

	var (
		out  = make([]O, len(s))
		errs = make([]error, len(s))
		grp  errgroup.Group
	)
	if limit > 0 {
		grp.SetLimit(limit)
	}

	for i, v := range s {
		i, v := i, v
		grp.Go(func() error {
			// Each goroutine only writes its own index.
			out[i], errs[i] = f(ctx, i, v)
			return nil
		})
	}

	_ = grp.Wait()

	return out, errs
}
