package httptype

// Headers is a case-sensitive name -> value mapping. Names are unique; the
// parser enforces first-occurrence-wins, so Set here is only used by
// response building where the caller owns the invariant.
type Headers struct {
	names  []string
	values []string
	index  map[string]int
}

// NewHeaders returns an empty header set with room for n entries.
func NewHeaders(n int) *Headers {
	return &Headers{
		names:  make([]string, 0, n),
		values: make([]string, 0, n),
		index:  make(map[string]int, n),
	}
}

// SetFirst inserts name/value only if name is not already present. This is
// the policy the request parser uses: duplicate headers are silently
// discarded, first occurrence wins.
func (h *Headers) SetFirst(name, value string) {
	if _, ok := h.index[name]; ok {
		return
	}
	h.index[name] = len(h.names)
	h.names = append(h.names, name)
	h.values = append(h.values, value)
}

// Set inserts or overwrites name/value unconditionally. Used by response
// construction, which has no duplicate-header ambiguity to resolve.
func (h *Headers) Set(name, value string) {
	if i, ok := h.index[name]; ok {
		h.values[i] = value
		return
	}
	h.index[name] = len(h.names)
	h.names = append(h.names, name)
	h.values = append(h.values, value)
}

// Get returns the value for name and whether it was present.
func (h *Headers) Get(name string) (string, bool) {
	i, ok := h.index[name]
	if !ok {
		return "", false
	}
	return h.values[i], true
}

// Len reports the number of distinct header names.
func (h *Headers) Len() int { return len(h.names) }

// Each calls fn for every header in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for i, n := range h.names {
		fn(n, h.values[i])
	}
}

// Reset empties the header set for reuse across pipelined requests.
func (h *Headers) Reset() {
	h.names = h.names[:0]
	h.values = h.values[:0]
	for k := range h.index {
		delete(h.index, k)
	}
}
