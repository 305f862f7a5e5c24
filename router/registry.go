// Package router is the handler registry: exact-match lookup plus
// longest-prefix matching for patterns ending in "/". This is a fresh
// implementation of the registry contract — the teacher's own router
// package builds a radix/param tree, a heavier structure this spec's
// exact+prefix-list model doesn't call for — but keeps the teacher's
// Context accessor surface (Method/Header/SetHeader/...) from
// router/context.go.
package router

import (
	"sort"
	"strings"
	"sync"

	"github.com/nikandfor/errors"
)

// ErrEmptyPattern is returned by Handle for a "" pattern.
var ErrEmptyPattern = errors.New("router: empty pattern")

// ErrNilHandler is returned by Handle for a nil handler.
var ErrNilHandler = errors.New("router: nil handler")

// ErrDuplicatePattern is returned by Handle when pattern is already
// registered.
var ErrDuplicatePattern = errors.New("router: duplicate pattern")

// ErrRegistryFrozen is returned by Handle once Freeze has been called —
// the server (component H) freezes the registry when Run starts, per
// the Open Question resolution that registration is not safe from a
// running reactor.
var ErrRegistryFrozen = errors.New("router: registry frozen")

// Handler answers one request through a Context.
type Handler func(c *Context)

type prefixEntry struct {
	pattern string
	handler Handler
}

// Registry is the URI-pattern-to-Handler map: an exact-match table and a
// descending-length-sorted list of trailing-"/" prefixes.
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]Handler
	prefixes []prefixEntry
	def      Handler
	frozen   bool
}

// New returns an empty, unfrozen registry.
func New() *Registry {
	return &Registry{exact: make(map[string]Handler)}
}

// Handle registers handler under pattern. A pattern ending in "/" also
// joins the prefix index, kept sorted by descending length so the
// longest match always wins ties.
func (r *Registry) Handle(pattern string, handler Handler) error {
	if pattern == "" {
		return ErrEmptyPattern
	}
	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, ok := r.exact[pattern]; ok {
		return ErrDuplicatePattern
	}
	for _, e := range r.prefixes {
		if e.pattern == pattern {
			return ErrDuplicatePattern
		}
	}

	r.exact[pattern] = handler
	if strings.HasSuffix(pattern, "/") {
		r.prefixes = append(r.prefixes, prefixEntry{pattern: pattern, handler: handler})
		sort.SliceStable(r.prefixes, func(i, j int) bool {
			return len(r.prefixes[i].pattern) > len(r.prefixes[j].pattern)
		})
	}
	return nil
}

// HandleDefault registers the fallback handler invoked when Match finds
// no exact or prefix registration, per the Open Question resolution.
func (r *Registry) HandleDefault(handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	r.def = handler
	return nil
}

// Freeze makes every subsequent Handle/HandleDefault call fail with
// ErrRegistryFrozen. Called once by the reactor when Run starts.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Match probes the exact table first, then the prefix list in descending-
// length order, returning the first handler whose pattern prefixes uri.
// Returns (nil, false) if nothing matches and no default is registered.
func (r *Registry) Match(uri string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.exact[uri]; ok {
		return h, true
	}
	for _, e := range r.prefixes {
		if strings.HasPrefix(uri, e.pattern) {
			return e.handler, true
		}
	}
	if r.def != nil {
		return r.def, true
	}
	return nil, false
}
