// Package voice dispatches spoken commands.
//
// Commands live in a Registry with an explicit lifecycle. A Dispatcher
// matches each transcript update against the registry, first registered
// phrase first, and invokes the bound action once. A failing action turns
// into an error pulse; it never stops later transcripts from matching.
package voice

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrEmptyPhrase is returned when registering a blank phrase.
	ErrEmptyPhrase = errors.New("voice command phrase is empty")
	// ErrRegistryClosed is returned when registering on a disposed registry.
	ErrRegistryClosed = errors.New("voice command registry is closed")
	// ErrNotSupported is returned by recognizers without a backend.
	ErrNotSupported = errors.New("speech recognition is not supported")
)

// DefaultCategory groups commands registered without a category.
const DefaultCategory = "general"

// Action is bound to a phrase.
type Action func() error

// Command is a phrase and the action it triggers.
type Command struct {
	Phrase      string
	Description string
	Category    string
	Action      Action
}

// Normalize lower-cases and trims a phrase or transcript.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type entry struct {
	key string
	cmd Command
}

// Registry holds commands keyed by normalized phrase. Matching priority is
// registration order.
type Registry struct {
	mu     sync.RWMutex
	byKey  map[string]*entry
	order  []*entry
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*entry)}
}

// Register adds cmd. Re-registering a phrase replaces its command but keeps
// its priority. The returned function unregisters this registration.
func (r *Registry) Register(cmd Command) (func(), error) {
	key := Normalize(cmd.Phrase)
	if key == "" {
		return nil, ErrEmptyPhrase
	}
	if cmd.Category == "" {
		cmd.Category = DefaultCategory
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}

	e, ok := r.byKey[key]
	if ok {
		e.cmd = cmd
	} else {
		e = &entry{key: key, cmd: cmd}
		r.byKey[key] = e
		r.order = append(r.order, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.removeEntry(e) })
	}, nil
}

// MustRegister is Register for static command tables.
func (r *Registry) MustRegister(cmds ...Command) {
	for _, cmd := range cmds {
		if _, err := r.Register(cmd); err != nil {
			panic(fmt.Sprintf("voice: register %q: %v", cmd.Phrase, err))
		}
	}
}

func (r *Registry) removeEntry(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byKey[e.key] != e {
		return
	}
	r.deleteLocked(e.key)
}

// Unregister removes the command for phrase.
func (r *Registry) Unregister(phrase string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(Normalize(phrase))
}

func (r *Registry) deleteLocked(key string) bool {
	e, ok := r.byKey[key]
	if !ok {
		return false
	}
	delete(r.byKey, key)
	for i, other := range r.order {
		if other == e {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Match returns the first registered command whose phrase occurs in the
// lower-cased transcript. A short phrase registered early shadows longer
// phrases containing it.
func (r *Registry) Match(transcript string) (Command, bool) {
	t := strings.ToLower(transcript)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.order {
		if strings.Contains(t, e.key) {
			return e.cmd, true
		}
	}
	return Command{}, false
}

// Commands returns the registered commands in priority order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmds := make([]Command, len(r.order))
	for i, e := range r.order {
		cmds[i] = e.cmd
	}
	return cmds
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Group is the commands of one category.
type Group struct {
	Category string
	Commands []Command
}

// Catalog lists commands grouped by category, categories sorted by name and
// commands in priority order. It backs the spoken "help" listing.
func (r *Registry) Catalog() []Group {
	index := make(map[string]int)
	var groups []Group
	for _, cmd := range r.Commands() {
		i, ok := index[cmd.Category]
		if !ok {
			i = len(groups)
			index[cmd.Category] = i
			groups = append(groups, Group{Category: cmd.Category})
		}
		groups[i].Commands = append(groups[i].Commands, cmd)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Category < groups[j].Category })
	return groups
}

// Dispose drops every command. Further Register calls fail.
func (r *Registry) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.byKey = make(map[string]*entry)
	r.order = nil
}

// Declaration is a command described in configuration, bound to an action
// by name.
type Declaration struct {
	Phrase      string `toml:"phrase" json:"phrase" yaml:"phrase"`
	Description string `toml:"description" json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `toml:"category" json:"category,omitempty" yaml:"category,omitempty"`
	Action      string `toml:"action" json:"action" yaml:"action"`
}

// Bind registers every declaration whose action is present in actions.
// Declarations naming unknown actions are skipped and reported together in
// the returned error. The returned function unregisters everything bound.
func (r *Registry) Bind(decls []Declaration, actions map[string]Action) (func(), error) {
	var (
		unbind []func()
		errs   []error
	)
	for _, d := range decls {
		action, ok := actions[d.Action]
		if !ok {
			errs = append(errs, fmt.Errorf("command %q: unknown action %q", d.Phrase, d.Action))
			continue
		}
		remove, err := r.Register(Command{
			Phrase:      d.Phrase,
			Description: d.Description,
			Category:    d.Category,
			Action:      action,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("command %q: %w", d.Phrase, err))
			continue
		}
		unbind = append(unbind, remove)
	}
	return func() {
		for _, remove := range unbind {
			remove()
		}
	}, errors.Join(errs...)
}
