package layout

import (
	"strconv"
	"sync"
)

// IDResolver hands out unique source IDs. When stems collide, later inputs
// get "-dupN" suffixes in resolution order, so resolving in sorted discovery
// order is deterministic. An input keeps the ID it was first given for the
// life of the resolver. Safe for concurrent use.
type IDResolver struct {
	mu      sync.Mutex
	byInput map[string]string // input path -> assigned id
	taken   map[string]bool
	next    map[string]int // stem -> next dup number to try
}

// NewIDResolver returns an empty resolver.
func NewIDResolver() *IDResolver {
	return &IDResolver{
		byInput: make(map[string]string),
		taken:   make(map[string]bool),
		next:    make(map[string]int),
	}
}

// Resolve returns the ID for input, preferring stem.
func (r *IDResolver) Resolve(input, stem string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byInput[input]; ok {
		return id
	}
	id := stem
	if r.taken[id] {
		n := max(r.next[stem], 1)
		for r.taken[stem+"-dup"+strconv.Itoa(n)] {
			n++
		}
		id = stem + "-dup" + strconv.Itoa(n)
		r.next[stem] = n + 1
	}
	r.taken[id] = true
	r.byInput[input] = id
	return id
}
