package rpcdispatch

// Registry is the ordered set of endpoints a dispatcher routes to. Order is
// significant: when several endpoints can serve a call, the one registered
// first wins.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry copies endpoints into a Registry, skipping nil entries. Later
// changes to the slice do not affect the registry.
func NewRegistry(endpoints ...Endpoint) *Registry {
	eps := make([]Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if e != nil {
			eps = append(eps, e)
		}
	}
	return &Registry{endpoints: eps}
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int { return len(r.endpoints) }

// Find returns the first endpoint, in registration order, whose effective
// target has exactly the requested namespace and a version that serves the
// requested version. It also returns that effective target.
//
// First match wins. Find stops at the first compatible endpoint and never
// weighs one match against another; registration order is the only
// tie-break.
//
// The requested version must already be parsed. ok is false when the
// registry is empty or nothing is compatible.
func (r *Registry) Find(namespace string, version Version) (Endpoint, Target, bool) {
	for _, e := range r.endpoints {
		target := effectiveTarget(e)
		if target.Namespace != namespace {
			continue
		}
		v, err := ParseVersion(target.Version)
		if err != nil {
			// Endpoint declared a target without NewTarget; never route to it.
			continue
		}
		if v.Serves(version) {
			return e, target, true
		}
	}
	return nil, Target{}, false
}
