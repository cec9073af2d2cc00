package core

import (
	"sort"
	"sync"

	"microi2c/tinycompress"
)

// Dictionary is the JSON document the host downloads through identify. It
// maps every message signature to its ID and carries firmware constants.
// identify serves it zlib-wrapped.
//
//	{"version":"...","config":{"K":"V"},"commands":{"sig":1},"responses":{"sig":0}}
type Dictionary struct {
	mu         sync.Mutex
	reg        *CommandRegistry
	version    string
	constants  map[string]string
	cached     []byte
	compressed []byte
}

var globalDictionary = NewDictionary(globalRegistry, "microi2c")

// NewDictionary returns a dictionary describing reg.
func NewDictionary(reg *CommandRegistry, version string) *Dictionary {
	return &Dictionary{
		reg:       reg,
		version:   version,
		constants: make(map[string]string),
	}
}

// GlobalDictionary returns the dictionary of the global registry.
func GlobalDictionary() *Dictionary {
	return globalDictionary
}

// RegisterConstant publishes a firmware constant in the global dictionary.
func RegisterConstant(name string, value interface{}) {
	globalDictionary.SetConstant(name, value)
}

// SetConstant records a constant. Integers and booleans are stored in
// their decimal text form.
func (d *Dictionary) SetConstant(name string, value interface{}) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int:
		s = itoa(v)
	case uint8:
		s = itoa(int(v))
	case uint16:
		s = itoa(int(v))
	case uint32:
		s = itoa(int(v))
	case bool:
		s = "0"
		if v {
			s = "1"
		}
	default:
		s = "?"
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = s
	d.cached, d.compressed = nil, nil
}

// SetVersion sets the version string reported to the host.
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached, d.compressed = nil, nil
}

// Bytes returns the JSON dictionary, building it on first use.
// Call Invalidate after registering more messages.
func (d *Dictionary) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jsonLocked()
}

// Compressed returns the dictionary as a zlib stream, the form identify
// sends.
func (d *Dictionary) Compressed() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.compressed == nil {
		d.compressed = tinycompress.Compress(d.jsonLocked())
	}
	return d.compressed
}

func (d *Dictionary) jsonLocked() []byte {
	if d.cached == nil {
		d.cached = d.build()
	}
	return d.cached
}

// Invalidate drops the cached serializations.
func (d *Dictionary) Invalidate() {
	d.mu.Lock()
	d.cached, d.compressed = nil, nil
	d.mu.Unlock()
}

// Chunk returns up to count bytes of the compressed dictionary starting at
// offset. Past the end it returns an empty slice, which tells the host it
// is done.
func (d *Dictionary) Chunk(offset uint32, count uint8) []byte {
	data := d.Compressed()
	if offset >= uint32(len(data)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	return append([]byte(nil), data[offset:end]...)
}

func (d *Dictionary) build() []byte {
	out := make([]byte, 0, 1024)
	out = append(out, `{"version":`...)
	out = appendJSONString(out, d.version)

	out = append(out, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendJSONString(out, name)
		out = append(out, ':')
		out = appendJSONString(out, d.constants[name])
	}

	var commands, responses []*Command
	for _, cmd := range d.reg.All() {
		if cmd.IsResponse() {
			responses = append(responses, cmd)
		} else {
			commands = append(commands, cmd)
		}
	}
	out = append(out, `},"commands":`...)
	out = appendIDMap(out, commands)
	out = append(out, `,"responses":`...)
	out = appendIDMap(out, responses)
	return append(out, '}')
}

func appendIDMap(out []byte, cmds []*Command) []byte {
	out = append(out, '{')
	for i, cmd := range cmds {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendJSONString(out, cmd.Signature())
		out = append(out, ':')
		out = append(out, itoa(int(cmd.ID))...)
	}
	return append(out, '}')
}

// appendJSONString quotes s. Message signatures and constants are plain
// ASCII, so only quotes, backslashes and control bytes need escaping.
func appendJSONString(out []byte, s string) []byte {
	const hex = "0123456789abcdef"
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			out = append(out, '\\', c)
		case c < 0x20:
			out = append(out, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
		default:
			out = append(out, c)
		}
	}
	return append(out, '"')
}
