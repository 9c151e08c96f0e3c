package fn

import (
	"bytes"
	"io"
)

// Map applies f to each element of s and returns the results.
func Map[I, O any, S []I](s S, f func(I) O) []O {
	output := make([]O, len(s))
	for i, x := range s {
		output[i] = f(x)
	}

	return output
}

// MapErr applies f to each element of s, stopping at the first error.
func MapErr[I, O any, S []I](s S, f func(I) (O, error)) ([]O, error) {
	output := make([]O, 0, len(s))
	for _, x := range s {
		outVal, err := f(x)
		if err != nil {
			return nil, err
		}

		output = append(output, outVal)
	}

	return output, nil
}

// Count returns the number of items in the slice that match the predicate.
func Count[T any](xs []T, pred func(T) bool) int {
	var count int
	for i := range xs {
		if pred(xs[i]) {
			count++
		}
	}

	return count
}

// Encoder is an object that can encode itself to a writer.
type Encoder interface {
	Encode(w io.Writer) error
}

// Encode encodes the given encoder into a byte slice.
func Encode(e Encoder) ([]byte, error) {
	var b bytes.Buffer
	if err := e.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
