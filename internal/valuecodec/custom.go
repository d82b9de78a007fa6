package valuecodec

import "fmt"

// CustomSerializer is a user-registered codec for a value shape the closed
// tag set in tags.go does not cover. spec.md §9 reframes the original's
// inheritance-based serializer matching as a first-match walk over an
// ordered list of (predicate, codec) pairs — that walk lives in Registry.
type CustomSerializer interface {
	// Encode returns the wire payload for v. Encode is only called for a
	// value that already passed this serializer's predicate.
	Encode(v any) ([]byte, error)
	// Decode reconstructs a value from a payload this serializer produced.
	Decode(payload []byte) (any, error)
}

type registryEntry struct {
	name       string
	predicate  func(v any) bool
	serializer CustomSerializer
}

// Registry holds user-registered custom serializers in registration order.
// Order matters twice over: it decides which serializer wins when more than
// one predicate matches, and it is the index persisted on the wire
// (TagCustom's serializer index) and in the file's metadata header so a
// reader can rehydrate the same name-to-position mapping.
type Registry struct {
	entries []registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a (name, predicate, serializer) entry. name is persisted
// verbatim in the store's metadata so a reader opening the file can confirm
// it registered a serializer in the same position before trusting
// TagCustom's index.
func (r *Registry) Register(name string, predicate func(v any) bool, serializer CustomSerializer) {
	r.entries = append(r.entries, registryEntry{name: name, predicate: predicate, serializer: serializer})
}

// Names returns the registered serializer names in registration order, the
// exact sequence persisted in the store's metadata header.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Lookup returns the index and serializer for the first registered
// predicate that matches v, or ok=false if none do.
func (r *Registry) Lookup(v any) (index int, serializer CustomSerializer, ok bool) {
	for i, e := range r.entries {
		if e.predicate(v) {
			return i, e.serializer, true
		}
	}
	return 0, nil, false
}

// ByIndex returns the serializer registered at position index.
func (r *Registry) ByIndex(index int) (CustomSerializer, error) {
	if index < 0 || index >= len(r.entries) {
		return nil, fmt.Errorf("valuecodec: custom serializer index %d out of range (%d registered)", index, len(r.entries))
	}
	return r.entries[index].serializer, nil
}

// Len returns the number of registered serializers.
func (r *Registry) Len() int { return len(r.entries) }
