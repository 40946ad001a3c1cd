// Package ledger records resources as they are acquired and releases them in
// reverse order when the process shuts down.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Resource is a named release action.
type Resource struct {
	Name    string
	Release func() error
}

// Ledger is an append-only record of acquired resources. It is safe for
// concurrent use.
type Ledger struct {
	mu        sync.Mutex
	resources []Resource
	torndown  bool
	logger    *slog.Logger
	onFailure func(name string, err error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used during teardown.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFailureHook registers a callback invoked for every release failure.
// The teardown failure counter is attached this way.
func WithFailureHook(fn func(name string, err error)) Option {
	return func(l *Ledger) { l.onFailure = fn }
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register appends a resource. A resource registered after Teardown has
// started is released immediately, since nothing would release it otherwise.
func (l *Ledger) Register(name string, release func() error) {
	if release == nil {
		return
	}

	l.mu.Lock()
	if l.torndown {
		l.mu.Unlock()
		l.logger.Warn("Resource registered after teardown, releasing now", "resource", name)
		l.release(Resource{Name: name, Release: release})
		return
	}
	l.resources = append(l.resources, Resource{Name: name, Release: release})
	l.mu.Unlock()
}

// Teardown releases every resource in reverse registration order. A failing
// or panicking release is logged and the walk continues. Only the first call
// does any work; the returned error joins all release failures.
func (l *Ledger) Teardown() error {
	l.mu.Lock()
	if l.torndown {
		l.mu.Unlock()
		return nil
	}
	l.torndown = true
	resources := l.resources
	l.resources = nil
	l.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := l.release(resources[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Ledger) release(r Resource) (err error) {
	l.logger.Info("Destroying resource", "resource", r.Name)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("release %s: panic: %v", r.Name, rec)
		}
		if err != nil {
			l.logger.Error("Failed to destroy resource", "resource", r.Name, "error", err)
			if l.onFailure != nil {
				l.onFailure(r.Name, err)
			}
		}
	}()

	if releaseErr := r.Release(); releaseErr != nil {
		return fmt.Errorf("release %s: %w", r.Name, releaseErr)
	}
	return nil
}

// Len returns the number of resources awaiting release.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.resources)
}

// Names returns the registered resource names in registration order.
func (l *Ledger) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.resources))
	for i, r := range l.resources {
		names[i] = r.Name
	}
	return names
}
