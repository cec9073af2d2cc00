package core

import (
	"errors"
	"sync"
)

// ErrUnknownCommand is returned by Dispatch for IDs nobody registered.
var ErrUnknownCommand = errors.New("unknown command id")

// CommandHandler handles one command. It decodes its own arguments from
// data, advancing the slice past them.
type CommandHandler func(data *[]byte) error

// Command is one entry of the message dictionary. Responses (firmware to
// host) have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // Argument format, e.g. "oid=%c data=%*s"
	Handler CommandHandler
}

// Signature returns "name format", the key the host looks the ID up by.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// IsResponse reports whether the message travels firmware to host.
func (c *Command) IsResponse() bool {
	return c.Handler == nil
}

// CommandRegistry assigns sequential IDs to messages in registration order.
type CommandRegistry struct {
	mu     sync.RWMutex
	byID   []*Command
	byName map[string]*Command
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry returns an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{byName: make(map[string]*Command)}
}

// Register adds a message and returns its ID. Registering a name twice
// returns the existing ID.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd, ok := r.byName[name]; ok {
		return cmd.ID
	}
	cmd := &Command{
		ID:      uint16(len(r.byID)),
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.byID = append(r.byID, cmd)
	r.byName[name] = cmd
	return cmd.ID
}

// Get returns the message with the given ID.
func (r *CommandRegistry) Get(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.byID) {
		return nil, false
	}
	return r.byID[id], true
}

// Lookup returns the message with the given name.
func (r *CommandRegistry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

// Count returns the number of registered messages.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// All returns every message in ID order.
func (r *CommandRegistry) All() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Command(nil), r.byID...)
}

// Dispatch runs the handler registered for id.
func (r *CommandRegistry) Dispatch(id uint16, data *[]byte) error {
	cmd, ok := r.Get(id)
	if !ok {
		return ErrUnknownCommand
	}
	if cmd.Handler == nil {
		// a response ID sent by the host
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// RegisterCommand adds a host-to-firmware command to the global registry.
func RegisterCommand(name, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse adds a firmware-to-host message to the global registry.
func RegisterResponse(name, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// DispatchCommand dispatches through the global registry.
func DispatchCommand(id uint16, data *[]byte) error {
	return globalRegistry.Dispatch(id, data)
}

// GlobalRegistry returns the registry the firmware serves.
func GlobalRegistry() *CommandRegistry {
	return globalRegistry
}
