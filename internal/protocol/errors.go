package protocol

import "errors"

var (
	ErrInvalidCommand  = errors.New("protocol: invalid command envelope")
	ErrInvalidResponse = errors.New("protocol: invalid response envelope")
	ErrDecode          = errors.New("protocol: malformed envelope")
	ErrMessageTooLarge = errors.New("protocol: message too large")
)

// Stable error kinds carried in error response envelopes. The gateway
// surfaces these verbatim to callers, so they never change casing or spelling.
const (
	KindConnectivity   = "ConnectivityError"
	KindTimeout        = "TimeoutError"
	KindDecode         = "DecodeError"
	KindUnknownCommand = "UnknownCommand"
	KindHandler        = "HandlerError"
	KindShape          = "ShapeError"
)

var knownKinds = map[string]struct{}{
	KindConnectivity:   {},
	KindTimeout:        {},
	KindDecode:         {},
	KindUnknownCommand: {},
	KindHandler:        {},
	KindShape:          {},
}

// KnownKind reports whether kind is part of the stable taxonomy.
func KnownKind(kind string) bool {
	_, ok := knownKinds[kind]
	return ok
}

// BridgeError is an error kind/message pair decoded from an error response.
// It satisfies error so the gateway can hand it to callers unmodified.
type BridgeError struct {
	Kind    string
	Message string
}

func (e *BridgeError) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Message
}
