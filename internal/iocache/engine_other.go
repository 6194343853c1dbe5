//go:build !linux

package iocache

func newEngine(depth int) (engine, error) {
	return newPortableEngine(depth), nil
}
