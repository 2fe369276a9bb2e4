// Package nameable defines the small self-identification contract that
// the engine's long-lived components (schedulers, the pool, blocking
// workers, the timer service) implement so log lines and control-plane
// snapshots can refer to them by a stable human-legible name rather than
// a pointer address.
package nameable

// Nameable is implemented by anything that can name itself in logs and
// administrative output.
type Nameable interface {
	Name() string
}
