package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// NotifierType identifies a notification channel.
type NotifierType string

// Supported notifier types.
const (
	NotifierSNS      NotifierType = "sns"
	NotifierTelegram NotifierType = "telegram"
)

// Registry holds the configured notifiers and dispatches messages to all of
// them. It is itself a Notifier.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[NotifierType]Notifier
}

var _ Notifier = (*Registry)(nil)

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[NotifierType]Notifier),
	}
}

// Register adds a notifier. A notifier of the same type is replaced.
func (r *Registry) Register(t NotifierType, n Notifier) error {
	if t == "" {
		return fmt.Errorf("notifier type cannot be empty")
	}
	if n == nil {
		return fmt.Errorf("cannot register nil notifier for %q", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifiers[t] = n
	return nil
}

// Get retrieves a notifier by type.
func (r *Registry) Get(t NotifierType) (Notifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifiers[t]
	return n, ok
}

// List returns the registered notifier types in sorted order.
func (r *Registry) List() []NotifierType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]NotifierType, 0, len(r.notifiers))
	for t := range r.notifiers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Len returns the number of registered notifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// Name implements Notifier.
func (r *Registry) Name() string {
	return "registry"
}

// Send delivers the message to every registered notifier. Every notifier is
// tried; failures are joined and wrapped in ErrNotificationDispatch.
func (r *Registry) Send(ctx context.Context, subject, body string) error {
	types := r.List()
	if len(types) == 0 {
		return fmt.Errorf("%w: no notifiers registered", ErrNotificationDispatch)
	}

	var errs []error
	for _, t := range types {
		n, _ := r.Get(t)
		if err := n.Send(ctx, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrNotificationDispatch, errors.Join(errs...))
	}
	return nil
}

// ValidNotifierTypes returns the notifier type strings accepted by
// configuration.
func ValidNotifierTypes() []string {
	return []string{string(NotifierSNS), string(NotifierTelegram)}
}

// ParseNotifierType converts a string to NotifierType.
func ParseNotifierType(s string) (NotifierType, error) {
	switch s {
	case string(NotifierSNS):
		return NotifierSNS, nil
	case string(NotifierTelegram):
		return NotifierTelegram, nil
	default:
		return "", fmt.Errorf("invalid notifier type: %q (valid types: %v)", s, ValidNotifierTypes())
	}
}
