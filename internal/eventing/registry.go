package eventing

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	// ErrUnknownEventType is returned when an envelope names an unregistered event.
	ErrUnknownEventType = errors.New("eventing: unknown event type")
	// ErrEmptyPayload is returned for an envelope without a payload.
	ErrEmptyPayload = errors.New("eventing: empty payload")
)

// Registry maps wire names to the Go struct each event decodes into. Handlers
// always receive the struct value, never a pointer.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewRegistry constructs a registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]reflect.Type)}
}

// Register adds events by sample. A name already bound to a different struct
// is an error; registering the same event twice is not.
func (r *Registry) Register(samples ...any) error {
	if r == nil {
		return errors.New("eventing: nil registry")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sample := range samples {
		if sample == nil {
			return errors.New("eventing: nil event sample")
		}
		t := reflect.TypeOf(sample)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return fmt.Errorf("eventing: %s is not a struct event", t)
		}
		name := EventType(sample)
		if bound, ok := r.types[name]; ok && bound != t {
			return fmt.Errorf("eventing: %q already bound to %s", name, bound)
		}
		r.types[name] = t
	}
	return nil
}

// Types returns the registered wire names in sorted order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode turns the envelope payload back into its registered event value.
func (r *Registry) Decode(env Envelope) (any, error) {
	if r == nil {
		return nil, errors.New("eventing: nil registry")
	}
	r.mu.RLock()
	t, ok := r.types[env.EventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrEmptyPayload, env.EventType, env.EventID)
	}
	target := reflect.New(t)
	if err := json.Unmarshal(env.Payload, target.Interface()); err != nil {
		return nil, fmt.Errorf("eventing: decode %s %s: %w", env.EventType, env.EventID, err)
	}
	return target.Elem().Interface(), nil
}
