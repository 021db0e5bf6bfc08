package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrCommandExists  = errors.New("registry: command already registered")
	ErrHandlerNil     = errors.New("registry: handler is nil")
	ErrInvalidCommand = errors.New("registry: invalid command metadata")
)

// Handler implements one command's behavior against host state. Handlers run
// only on the host's cooperative turn; they are free to touch host state
// without locks.
type Handler func(params map[string]any) (any, error)

// ParamKind names the accepted value shape for one declared parameter.
type ParamKind string

const (
	KindString ParamKind = "string"
	KindNumber ParamKind = "number"
	KindBool   ParamKind = "bool"
	KindList   ParamKind = "list"
	KindObject ParamKind = "object"
)

// ParamSpec declares one parameter a command accepts.
type ParamSpec struct {
	Name     string
	Kind     ParamKind
	Required bool
}

// Entry binds a command name to its handler and declared shape. Entries are
// immutable after process start; extension happens by recompiling.
type Entry struct {
	Name        string
	Description string
	Accepts     []ParamSpec
	Handler     Handler
}

// Registry stores command entries by stable name.
type Registry struct {
	items map[string]Entry
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Entry)}
}

// Register adds a command entry to the registry.
func (r *Registry) Register(entry Entry) error {
	if entry.Handler == nil {
		return ErrHandlerNil
	}
	name := strings.TrimSpace(entry.Name)
	if name == "" || !isValidName(name) {
		return fmt.Errorf("%w: invalid name %q", ErrInvalidCommand, entry.Name)
	}
	if strings.TrimSpace(entry.Description) == "" {
		return fmt.Errorf("%w: missing description for %q", ErrInvalidCommand, name)
	}
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	entry.Name = name
	r.items[name] = entry
	return nil
}

// MustRegister registers an entry and panics on failure. Used only during
// startup table construction, where a bad entry is a programming error.
func (r *Registry) MustRegister(entry Entry) {
	if err := r.Register(entry); err != nil {
		panic(err)
	}
}

// Resolve returns a command entry by exact, case-sensitive name.
func (r *Registry) Resolve(name string) (Entry, bool) {
	entry, ok := r.items[name]
	return entry, ok
}

// List returns entries in deterministic order by name.
func (r *Registry) List() []Entry {
	list := make([]Entry, 0, len(r.items))
	for _, entry := range r.items {
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Len reports the number of registered commands.
func (r *Registry) Len() int {
	return len(r.items)
}

func isValidName(name string) bool {
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '_' || c == '.'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if isSep && (i == 0 || i == len(name)-1 || lastSep) {
			return false
		}
		lastSep = isSep
	}
	return true
}
