package groups

import "encoding/json"

// AddrSet is a deduplicating set of node addresses that remembers
// first-insertion order, so serialized groups are deterministic.
// The zero value is an empty set ready to use.
type AddrSet struct {
	order []string
	index map[string]struct{}
}

// NewAddrSet returns a set holding addrs, duplicates dropped.
func NewAddrSet(addrs ...string) AddrSet {
	var s AddrSet
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add inserts addr and reports whether it was not already present.
func (s *AddrSet) Add(addr string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[addr]; ok {
		return false
	}
	s.index[addr] = struct{}{}
	s.order = append(s.order, addr)
	return true
}

// Contains reports whether addr is in the set.
func (s AddrSet) Contains(addr string) bool {
	_, ok := s.index[addr]
	return ok
}

func (s AddrSet) Len() int {
	return len(s.order)
}

// Members returns a copy of the addresses in insertion order.
func (s AddrSet) Members() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// SubsetOf reports whether every member of s is also in other.
func (s AddrSet) SubsetOf(other AddrSet) bool {
	for _, a := range s.order {
		if !other.Contains(a) {
			return false
		}
	}
	return true
}

func (s AddrSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

func (s AddrSet) MarshalYAML() (any, error) {
	return s.Members(), nil
}
