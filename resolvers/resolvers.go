// Package resolvers wires every built-in resolver into a registry.
package resolvers

import (
	nikoget "github.com/xuanyeovo/nikoget"
	"github.com/xuanyeovo/nikoget/resolvers/ncm"
	"github.com/xuanyeovo/nikoget/resolvers/raw"
	"github.com/xuanyeovo/nikoget/resolvers/youtube"
)

// NewRegistry builds a registry containing all built-in resolvers in match-priority
// order, with raw last as the catch-all for direct file URLs. A resolver that fails
// to construct is recorded as broken; the others still register, so one bad resolver
// never takes the whole registry down.
func NewRegistry() *nikoget.Registry {
	registry := nikoget.NewRegistry()
	for _, b := range []struct {
		name  string
		build func() (nikoget.Resolver, error)
	}{
		{"ncm", func() (nikoget.Resolver, error) { return ncm.New() }},
		{"youtube", func() (nikoget.Resolver, error) { return youtube.New() }},
		{"raw", func() (nikoget.Resolver, error) { return raw.New() }},
	} {
		resolver, err := b.build()
		if err != nil {
			registry.RegisterBroken(b.name, err)
			continue
		}
		registry.MustRegister(resolver)
	}
	return registry
}
