package session

// Event is the server-to-client WebSocket frame. Every frame the gateway
// emits has exactly these two fields.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Event types, in the order a normal turn emits them.
const (
	EventSystem = "system" // connection lifecycle notices
	EventUser   = "user"   // echo of the client's message
	EventTyping = "typing" // progress indicator while the model runs
	EventAI     = "ai"     // the complete model answer
	EventError  = "error"  // turn-level failure
)

const welcomeMessage = "Connected to chat server. Type your message to chat with the AI."

// clientMessage is the client-to-server frame. UseLangchain is a pointer
// so that an absent field (keep the session's backend) is distinguishable
// from an explicit false (switch to manual).
type clientMessage struct {
	Message      string   `json:"message"`
	Sources      []string `json:"sources,omitempty"`
	UseLangchain *bool    `json:"useLangchain,omitempty"`
}
