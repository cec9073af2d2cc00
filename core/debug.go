package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// BusEvent captures one bus operation for post-mortem analysis
type BusEvent struct {
	Kind  uint8      // Event kind code
	Addr  I2CAddress // Target device
	Value uint8      // Data byte or length, depending on Kind
	Ack   bool       // Whether the device acknowledged
}

// Event kind codes
const (
	EvtProbe   = 1 // Scan/probe of one address
	EvtAddress = 2 // Address byte of a transaction
	EvtWrite   = 3 // Data byte written
	EvtRead    = 4 // Data byte read
	EvtTimeout = 5 // Clock stretch limit hit
)

const (
	BusTraceSize = 32 // Keep last 32 events
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool

	busTrace     [BusTraceSize]BusEvent
	busTraceHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordBusEvent stores an event in the trace ring, overwriting the oldest.
func RecordBusEvent(kind uint8, addr I2CAddress, value uint8, ack bool) {
	idx := busTraceHead
	busTrace[idx] = BusEvent{
		Kind:  kind,
		Addr:  addr,
		Value: value,
		Ack:   ack,
	}
	busTraceHead = (idx + 1) % BusTraceSize
}

// BusTrace returns the recorded events, oldest first.
func BusTrace() []BusEvent {
	events := make([]BusEvent, 0, BusTraceSize)
	for i := uint8(0); i < BusTraceSize; i++ {
		evt := busTrace[(busTraceHead+i)%BusTraceSize]
		if evt.Kind == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// DumpBusTrace writes the trace ring through the debug writer
func DumpBusTrace() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[I2C] === Bus Trace ===")
	for _, evt := range BusTrace() {
		var name string
		switch evt.Kind {
		case EvtProbe:
			name = "PROBE"
		case EvtAddress:
			name = "ADDR"
		case EvtWrite:
			name = "WRITE"
		case EvtRead:
			name = "READ"
		case EvtTimeout:
			name = "TIMEOUT!"
		default:
			name = "UNKNOWN"
		}

		ack := "nack"
		if evt.Ack {
			ack = "ack"
		}
		debugPrintln("[I2C] " + name +
			" addr=" + hexByte(byte(evt.Addr)) +
			" val=" + itoa(int(evt.Value)) +
			" " + ack)
	}
	debugPrintln("[I2C] === End Trace ===")
}

// ClearBusTrace empties the trace ring
func ClearBusTrace() {
	for i := range busTrace {
		busTrace[i] = BusEvent{}
	}
	busTraceHead = 0
}
