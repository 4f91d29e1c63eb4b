package server

// Envelope is the wire frame shared by the websocket and QUIC frontends.
// Inbound, Type names an action type; outbound, it names a reply or event.
type Envelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`

	// Async requests an enqueue-and-ack instead of a synchronous result.
	Async bool `json:"async,omitempty"`
}

// Outbound envelope types.
const (
	TypeWelcome = "welcome"
	TypeResult  = "result"
	TypeQueued  = "queued"
	TypeError   = "error"
)

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func errorEnvelope(message string) outbound {
	return outbound{Type: TypeError, Data: map[string]any{"message": message}}
}
