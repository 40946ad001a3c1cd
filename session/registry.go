package session

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrUnknownAlias is returned when no session is configured for an alias.
	ErrUnknownAlias = stderrors.New("unknown session alias")
	// ErrDuplicateAlias is returned when two sessions share an alias.
	ErrDuplicateAlias = stderrors.New("duplicate session alias")
	// ErrDuplicateIdentity is returned when two sessions share an identity.
	ErrDuplicateIdentity = stderrors.New("duplicate session identity")
	// ErrEmptyAlias is returned for a session without an alias.
	ErrEmptyAlias = stderrors.New("empty session alias")
	// ErrUnknownIdentity is returned when an identity is not registered.
	ErrUnknownIdentity = stderrors.New("unknown session identity")
)

// UnknownAliasError reports an alias with no configured session.
type UnknownAliasError struct {
	Alias Alias
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("Unknown session alias: %s", e.Alias)
}

func (e *UnknownAliasError) Unwrap() error { return ErrUnknownAlias }

// DuplicateError reports a repeated alias or identity.
type DuplicateError struct {
	Alias    Alias
	Identity Identity
	cause    error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("SessionID and SessionAlias in sessions settings should be unique. Repeating of session alias: %q or sessionID: %q",
		e.Alias, e.Identity.String())
}

func (e *DuplicateError) Unwrap() error { return e.cause }

// Entry is one configured session.
type Entry struct {
	Alias    Alias
	Identity Identity
}

// Registry is the immutable bijection between aliases and identities.
// It is safe for concurrent reads.
type Registry struct {
	entries    []Entry
	byAlias    map[Alias]Identity
	byIdentity map[Identity]Alias
}

// NewRegistry builds a registry from entries in configuration order. The
// whole list is collected first, then verified: a repeated alias or identity
// is reported at its second occurrence, and a partially built registry is
// never returned.
func NewRegistry(entries []Entry) (*Registry, error) {
	aliases := make(map[Alias][]int, len(entries))
	identities := make(map[Identity][]int, len(entries))
	for i, e := range entries {
		if e.Alias == "" {
			return nil, fmt.Errorf("%w for session %s", ErrEmptyAlias, e.Identity)
		}
		aliases[e.Alias] = append(aliases[e.Alias], i)
		identities[e.Identity] = append(identities[e.Identity], i)
	}

	for _, e := range entries {
		if at := aliases[e.Alias]; len(at) > 1 {
			dup := entries[at[1]]
			return nil, &DuplicateError{Alias: dup.Alias, Identity: dup.Identity, cause: ErrDuplicateAlias}
		}
		if at := identities[e.Identity]; len(at) > 1 {
			dup := entries[at[1]]
			return nil, &DuplicateError{Alias: dup.Alias, Identity: dup.Identity, cause: ErrDuplicateIdentity}
		}
	}

	r := &Registry{
		entries:    append([]Entry(nil), entries...),
		byAlias:    make(map[Alias]Identity, len(entries)),
		byIdentity: make(map[Identity]Alias, len(entries)),
	}
	for _, e := range r.entries {
		r.byAlias[e.Alias] = e.Identity
		r.byIdentity[e.Identity] = e.Alias
	}
	return r, nil
}

// Resolve returns the identity registered for alias.
func (r *Registry) Resolve(alias Alias) (Identity, error) {
	id, ok := r.byAlias[alias]
	if !ok {
		return Identity{}, &UnknownAliasError{Alias: alias}
	}
	return id, nil
}

// AliasOf returns the alias registered for id.
func (r *Registry) AliasOf(id Identity) (Alias, error) {
	alias, ok := r.byIdentity[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownIdentity, id)
	}
	return alias, nil
}

// Aliases returns every alias in configuration order.
func (r *Registry) Aliases() []Alias {
	out := make([]Alias, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Alias
	}
	return out
}

// Entries returns a copy of the registered entries in configuration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of sessions.
func (r *Registry) Len() int { return len(r.entries) }
