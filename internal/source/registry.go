package source

import "github.com/rotisserie/eris"

// Registry maps source keys to their extractors.
type Registry struct {
	sources map[string]Source
	order   []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
	}
}

// URLs holds the entry pages of the built-in sources.
type URLs struct {
	PHAC    string
	Kindred string
	OTFSeed string
	OTFGrow string
}

// DefaultURLs returns the live site addresses.
func DefaultURLs() URLs {
	return URLs{
		PHAC:    DefaultPHACURL,
		Kindred: DefaultKindredURL,
		OTFSeed: DefaultOTFSeedURL,
		OTFGrow: DefaultOTFGrowURL,
	}
}

// NewDefaultRegistry registers phac, kindred and otf in run order.
// Empty URLs fall back to the live addresses.
func NewDefaultRegistry(urls URLs) *Registry {
	r := NewRegistry()
	r.Register(NewPHAC(urls.PHAC))
	r.Register(NewKindred(urls.Kindred))
	r.Register(NewOTF(OTFGrantTypes(urls.OTFSeed, urls.OTFGrow)))
	return r
}

// Register adds a source to the registry. Registering a key twice replaces
// the extractor but keeps its original position.
func (r *Registry) Register(s Source) {
	key := s.Key()
	if _, ok := r.sources[key]; !ok {
		r.order = append(r.order, key)
	}
	r.sources[key] = s
}

// Get returns a source by key.
func (r *Registry) Get(key string) (Source, error) {
	s, ok := r.sources[key]
	if !ok {
		return nil, eris.Errorf("source: unknown source %q", key)
	}
	return s, nil
}

// Select returns the named sources in registration order, or every source
// when keys is empty. Unknown keys are an error.
func (r *Registry) Select(keys []string) ([]Source, error) {
	if len(keys) == 0 {
		return r.All(), nil
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, err := r.Get(k); err != nil {
			return nil, err
		}
		want[k] = true
	}
	var result []Source
	for _, k := range r.order {
		if want[k] {
			result = append(result, r.sources[k])
		}
	}
	return result, nil
}

// All returns all sources in registration order.
func (r *Registry) All() []Source {
	result := make([]Source, 0, len(r.order))
	for _, k := range r.order {
		result = append(result, r.sources[k])
	}
	return result
}

// Keys returns all registered keys in registration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
