// Package rooms defines the fixed set of chat rooms a connection may occupy.
package rooms

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

// DefaultRooms is the room set used when none is configured.
var DefaultRooms = []string{"general", "random", "tech"}

// ErrNoRooms is returned when a registry would contain no rooms.
var ErrNoRooms = errors.New("rooms: at least one room is required")

// Registry is the immutable set of valid room identifiers. It is safe for
// concurrent use because it never changes after construction.
type Registry struct {
	rooms       []string
	known       map[string]struct{}
	defaultRoom string
}

// NewRegistry builds a registry from ids, dropping blanks and duplicates while
// keeping the original order. If defaultRoom is empty or unknown, the first
// room becomes the default.
func NewRegistry(ids []string, defaultRoom string) (*Registry, error) {
	cleaned := lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string {
		return strings.TrimSpace(id)
	})))
	if len(cleaned) == 0 {
		return nil, ErrNoRooms
	}

	known := make(map[string]struct{}, len(cleaned))
	for _, id := range cleaned {
		known[id] = struct{}{}
	}

	if _, ok := known[defaultRoom]; !ok {
		defaultRoom = cleaned[0]
	}

	return &Registry{rooms: cleaned, known: known, defaultRoom: defaultRoom}, nil
}

// IsValid reports whether id names a room in the registry.
func (r *Registry) IsValid(id string) bool {
	_, ok := r.known[id]
	return ok
}

// Default returns the room new connections are placed in.
func (r *Registry) Default() string {
	return r.defaultRoom
}

// List returns the rooms in configuration order. The returned slice is a copy.
func (r *Registry) List() []string {
	return append([]string(nil), r.rooms...)
}

// Resolve returns id when it is valid and the default room otherwise.
func (r *Registry) Resolve(id string) string {
	if r.IsValid(id) {
		return id
	}
	return r.defaultRoom
}
