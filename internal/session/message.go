package session

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Mode selects the companion personality. History records and handoffs carry
// modes as plain strings; anything unrecognized is ignored.
type Mode string

const (
	ModeFun    Mode = "fun"
	ModeMentor Mode = "mentor"
	ModeBuddy  Mode = "buddy"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeFun, ModeMentor, ModeBuddy:
		return true
	}
	return false
}

// ParseMode returns the mode named by s, or ModeFun when s is not a known mode.
func ParseMode(s string) Mode {
	if m := Mode(s); m.Valid() {
		return m
	}
	return ModeFun
}

const (
	// Greeting opens every conversation, fresh or hydrated.
	Greeting = "👋 Hi there! I'm your music companion. How can I help you today?"

	// ErrorReply is shown as a bot message when a send fails.
	ErrorReply = "Sorry, I encountered an error while processing your request. Please try again."
)

// Message is one entry in a session's log. A user message is complete at
// creation; a bot message starts incomplete and is completed by the reveal
// engine. Once complete, a message never changes.
type Message struct {
	ID        string
	Sender    Sender
	Content   string
	CreatedAt time.Time
	Complete  bool
}

func newUserMessage(text string, at time.Time) Message {
	return Message{
		ID:        "user-" + uuid.NewString(),
		Sender:    SenderUser,
		Content:   text,
		CreatedAt: at,
		Complete:  true,
	}
}

func newBotMessage(text string, at time.Time, complete bool) Message {
	return Message{
		ID:        "bot-" + uuid.NewString(),
		Sender:    SenderBot,
		Content:   text,
		CreatedAt: at,
		Complete:  complete,
	}
}

func greetingMessage(at time.Time) Message {
	return Message{
		ID:        "greeting",
		Sender:    SenderBot,
		Content:   Greeting,
		CreatedAt: at,
		Complete:  true,
	}
}
