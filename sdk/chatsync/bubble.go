package chatsync

import "github.com/mbeoliero/campuschat/sdk"

// Kind says which side of the conversation a message bubble sits on
type Kind int

const (
	Received Kind = iota
	Sent
)

func (k Kind) String() string {
	if k == Sent {
		return "sent"
	}
	return "received"
}

// Bubble is a message bound to the viewer it is displayed to
type Bubble struct {
	Kind    Kind
	Message *sdk.Message
}

// Bind resolves which side msg is displayed on for viewer
func Bind(msg *sdk.Message, viewer int64) Bubble {
	kind := Received
	if msg.SenderId == viewer {
		kind = Sent
	}
	return Bubble{Kind: kind, Message: msg}
}

// BindAll binds every message in order
func BindAll(msgs []*sdk.Message, viewer int64) []Bubble {
	out := make([]Bubble, len(msgs))
	for i, m := range msgs {
		out[i] = Bind(m, viewer)
	}
	return out
}
