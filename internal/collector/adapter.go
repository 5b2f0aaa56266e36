package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"EstateSentinel/internal/model"
)

var (
	// ErrInvalidResponse marks a page whose body is absent or structurally invalid.
	// It ends the run cleanly and is never retried.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrUnknownSource is returned for a source name with no registered adapter.
	ErrUnknownSource = errors.New("unknown source")
)

// TotalUnknown is reported by adapters whose upstream does not expose a result count.
const TotalUnknown = -1

// RawItem is one undecoded upstream record.
type RawItem any

// Page is the result of fetching one page from a source.
type Page struct {
	Items   []RawItem
	HasMore bool
	Total   int
}

// Adapter fetches raw pages from one external source and maps items to listings.
// FetchPage must not mutate shared state; Normalize must not panic on malformed input.
type Adapter interface {
	Name() string
	PageSize() int
	DelayRange() (min, max time.Duration)
	FetchPage(ctx context.Context, page int) (*Page, error)
	Normalize(raw RawItem) (*model.Listing, error)
}

// Settings configures an adapter. Zero values fall back to adapter defaults.
type Settings struct {
	BaseURL  string
	APIURL   string
	Category int
	PageSize int
	DelayMin time.Duration
	DelayMax time.Duration
	Timeout  time.Duration
}

type factory func(Settings, Transport) Adapter

var factories = map[string]factory{
	ChototName:     func(s Settings, t Transport) Adapter { return NewChototAdapter(s, t) },
	BatdongsanName: func(s Settings, t Transport) Adapter { return NewBatdongsanAdapter(s, t) },
}

// NewAdapter builds the adapter registered under name.
func NewAdapter(name string, s Settings, t Transport) (Adapter, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return f(s, t), nil
}

// Registry maps source names to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds an adapter. Registering a name twice is an error.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Name()]; exists {
		return fmt.Errorf("source %q already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Get returns the adapter for name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return a, nil
}

// Names returns registered source names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
