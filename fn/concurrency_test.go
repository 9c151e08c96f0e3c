package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParMapAllOrder makes sure results are positional even when later
// elements finish first.
func TestParMapAllOrder(t *testing.T) {
	t.Parallel()

	in := []int{5, 4, 3, 2, 1}
	out, errs := ParMapAll(
		context.Background(), in, 0,
		func(_ context.Context, i int, v int) (int, error) {
			time.Sleep(time.Duration(v) * 5 * time.Millisecond)
			return v * 10, nil
		},
	)

	require.Equal(t, []int{50, 40, 30, 20, 10}, out)
	idx, err := firstErr(errs)
	require.NoError(t, err)
	require.Equal(t, -1, idx)
}

// TestParMapAllSiblingsFinish asserts that a failing element does not stop
// its siblings.
func TestParMapAllSiblingsFinish(t *testing.T) {
	t.Parallel()

	var finished atomic.Int32
	errBoom := errors.New("boom")

	in := []int{0, 1, 2, 3}
	_, errs := ParMapAll(
		context.Background(), in, 2,
		func(_ context.Context, i int, v int) (int, error) {
			if v == 1 {
				return 0, errBoom
			}

			time.Sleep(10 * time.Millisecond)
			finished.Add(1)

			return v, nil
		},
	)

	require.EqualValues(t, 3, finished.Load())
	idx, err := firstErr(errs)
	require.Equal(t, 1, idx)
	require.ErrorIs(t, err, errBoom)
}

// TestParSliceCancel checks the first error is returned by ParSlice.
func TestParSliceCancel(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	err := ParSlice(
		context.Background(), []int{1, 2, 3},
		func(_ context.Context, v int) error {
			if v == 2 {
				return errBoom
			}
			return nil
		},
	)
	require.ErrorIs(t, err, errBoom)
}

// firstErr returns the lowest indexed non-nil error of errs along with its
// index, or -1 if all are nil.
func firstErr(errs []error) (int, error) {
	for i, err := range errs {
		if err != nil {
			return i, err
		}
	}

	return -1, nil
}
