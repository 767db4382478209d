package identity

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Attributes are key/value pairs attested about an identity.
type Attributes map[string]string

// Clone returns a copy of a.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns the attribute names in order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the attributes as "k1=v1, k2=v2".
func (a Attributes) String() string {
	parts := make([]string, 0, len(a))
	for _, k := range a.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, a[k]))
	}
	return strings.Join(parts, ", ")
}

type attributeEntry struct {
	attrs     Attributes
	expiresAt time.Time
}

// Repository stores the attributes known about identities.
type Repository struct {
	mu      sync.RWMutex
	entries map[Identifier]attributeEntry
	now     func() time.Time
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		entries: make(map[Identifier]attributeEntry),
		now:     time.Now,
	}
}

// PutAttributeValue sets one attribute of id.
func (r *Repository) PutAttributeValue(id Identifier, key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.live(id)
	if !ok {
		e = attributeEntry{attrs: make(Attributes)}
	}
	e.attrs[key] = value
	r.entries[id] = e
}

// PutAttributes replaces every attribute of id. A zero expiresAt never
// expires.
func (r *Repository) PutAttributes(id Identifier, attrs Attributes, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = attributeEntry{attrs: attrs.Clone(), expiresAt: expiresAt}
}

// GetAttributes returns a copy of the attributes of id.
func (r *Repository) GetAttributes(id Identifier) (Attributes, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.live(id)
	if !ok {
		return nil, false
	}
	return e.attrs.Clone(), true
}

// GetAttributeValue returns one attribute of id.
func (r *Repository) GetAttributeValue(id Identifier, key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.live(id)
	if !ok {
		return "", false
	}
	v, ok := e.attrs[key]
	return v, ok
}

// DeleteIdentity forgets every attribute of id.
func (r *Repository) DeleteIdentity(id Identifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Identifiers lists the identities with live attributes.
func (r *Repository) Identifiers() []Identifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identifier, 0, len(r.entries))
	for id := range r.entries {
		if _, ok := r.live(id); ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// live must be called with r.mu held.
func (r *Repository) live(id Identifier) (attributeEntry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return attributeEntry{}, false
	}
	if !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt) {
		return attributeEntry{}, false
	}
	return e, true
}
