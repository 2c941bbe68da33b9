package async

import "github.com/xuanyeovo/nikoget/generic"

// Run will run a function in a goroutine, returning its result via a channel.
func Run[T any](f func() T) <-chan T {
	c := make(chan T)
	go func() {
		c <- f()
	}()
	return c
}

// RunResult is like Run, but for functions with a (T, error) return value. The result is
// buffered, so the goroutine finishes even if the receiver abandons the channel.
func RunResult[T any](f func() (T, error)) <-chan generic.Result[T] {
	c := make(chan generic.Result[T], 1)
	go func() {
		c <- generic.NewResult(f())
	}()
	return c
}
