package core

import (
	"errors"

	"microi2c/protocol"
)

// ErrNoTransport is returned by SendResponse before a transport is set.
var ErrNoTransport = errors.New("no transport configured")

// ErrUnknownResponse is returned by SendResponse for unregistered names.
var ErrUnknownResponse = errors.New("unknown response name")

// Responder sends one encoded message to the host.
type Responder interface {
	SendCommand(cmdID uint16, args *protocol.Args) error
}

var globalTransport Responder

// SetGlobalTransport sets where SendResponse writes.
func SetGlobalTransport(r Responder) {
	globalTransport = r
}

// SendResponse sends the registered response name with args.
func SendResponse(name string, args *protocol.Args) error {
	if globalTransport == nil {
		return ErrNoTransport
	}
	cmd, ok := globalRegistry.Lookup(name)
	if !ok {
		return ErrUnknownResponse
	}
	return globalTransport.SendCommand(cmd.ID, args)
}

// InitCoreCommands registers the bootstrap messages. The host assumes
// identify_response is ID 0 and identify is ID 1, so this must run before
// any other registration.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterConstant("PROTOCOL_VERSION", protocol.Version)
	RegisterConstant("BLOCK_MAX", protocol.BlockMax)
}

// handleIdentify returns one chunk of the dictionary.
// Format: identify offset=%u count=%c
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	var args protocol.Args
	args.Uint(offset).Bytes(globalDictionary.Chunk(offset, uint8(count)))
	return SendResponse("identify_response", &args)
}
