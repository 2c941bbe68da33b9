package nikoget

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// A Resolver recognizes URLs from one site or family of sites and produces media
// descriptors for them.
type Resolver interface {
	// ID is a stable identity for the resolver, e.g. "org.xuanyeovo.ncm".
	ID() string
	Version() string
	// MatchURL reports whether this resolver handles the URL. The first registered
	// resolver to match wins.
	MatchURL(url string) bool
	// Resolve produces the media entries found at the URL. Failures are reported as
	// *ResolveError for site-shape problems, or transport errors otherwise.
	Resolve(ctx context.Context, url string) ([]Entry, error)
}

// A Registry is an ordered collection of resolvers. Matching is deterministic: resolvers
// are tried in registration order and the first MatchURL hit wins.
//
// A registry is built once, up front, and is not safe for concurrent mutation.
type Registry struct {
	resolvers []Resolver
	broken    error
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a resolver. Registering more resolvers after a load failure is still
// allowed; a broken resolver does not stop discovery of the others.
func (r *Registry) Register(res Resolver) error {
	if res == nil || res.ID() == "" {
		return ErrInvalidResolver
	}
	r.resolvers = append(r.resolvers, res)
	return nil
}

// MustRegister wraps Register but panics if there is an error.
func (r *Registry) MustRegister(res Resolver) {
	if err := r.Register(res); err != nil {
		panic(err)
	}
}

// RegisterBroken records that a resolver failed to load. The failure is retained and
// surfaced by Resolvers, not raised here: callers detect partial-load failure at first
// use rather than at registration time.
func (r *Registry) RegisterBroken(name string, err error) {
	r.broken = multierror.Append(r.broken, multierror.Prefix(err, "["+name+"]"))
}

// Match returns the first resolver accepting the URL, trying only the resolvers that
// loaded successfully, or ErrNoMatch.
func (r *Registry) Match(url string) (Resolver, error) {
	for _, res := range r.resolvers {
		if res.MatchURL(url) {
			return res, nil
		}
	}
	return nil, ErrNoMatch
}

// Resolvers returns the registered resolvers in registration order. If any resolver
// failed to load, the retained error poisons the iteration instead.
func (r *Registry) Resolvers() ([]Resolver, error) {
	if r.broken != nil {
		return nil, &BrokenRegistryError{Err: r.broken}
	}
	return r.resolvers, nil
}

// Broken reports whether any resolver failed to load.
func (r *Registry) Broken() bool {
	return r.broken != nil
}
