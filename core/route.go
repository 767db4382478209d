package core

import (
	"fmt"
	"strings"
)

// Route is an ordered list of hops. The first hop is the next one.
type Route []Address

// NewRoute parses each part with ParseAddress.
func NewRoute(parts ...string) Route {
	r := make(Route, 0, len(parts))
	for _, p := range parts {
		r = append(r, ParseAddress(p))
	}
	return r
}

// RouteOf builds a route from addresses.
func RouteOf(addrs ...Address) Route {
	r := make(Route, len(addrs))
	copy(r, addrs)
	return r
}

// Len returns the number of hops.
func (r Route) Len() int {
	return len(r)
}

// Next returns the first hop without removing it.
func (r Route) Next() (Address, error) {
	if len(r) == 0 {
		return Address{}, ErrEmptyRoute
	}
	return r[0], nil
}

// Step removes and returns the first hop.
func (r *Route) Step() (Address, error) {
	if len(*r) == 0 {
		return Address{}, ErrEmptyRoute
	}
	a := (*r)[0]
	*r = (*r)[1:]
	return a, nil
}

// PopFront drops the first hop, if any.
func (r *Route) PopFront() *Route {
	if len(*r) > 0 {
		*r = (*r)[1:]
	}
	return r
}

// Prepend inserts a as the first hop.
func (r *Route) Prepend(a Address) *Route {
	out := make(Route, 0, len(*r)+1)
	out = append(out, a)
	*r = append(out, *r...)
	return r
}

// PrependRoute inserts all hops of other in front of r.
func (r *Route) PrependRoute(other Route) *Route {
	out := make(Route, 0, len(*r)+len(other))
	out = append(out, other...)
	*r = append(out, *r...)
	return r
}

// Append adds a as the last hop.
func (r *Route) Append(a Address) *Route {
	*r = append(r.Clone(), a)
	return r
}

// Clone returns a copy that shares no storage with r.
func (r Route) Clone() Route {
	if r == nil {
		return nil
	}
	out := make(Route, len(r))
	copy(out, r)
	return out
}

// String renders the route as "[0#h1, 0#echoer]".
func (r Route) String() string {
	parts := make([]string, len(r))
	for i, a := range r {
		parts[i] = a.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}
