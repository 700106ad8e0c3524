package webhook

// Payload is the WhatsApp Cloud API notification envelope. Only the fields
// needed to route text messages are decoded.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []Message `json:"messages"`
}

// Message is one inbound user message. Non-text types carry no Text.
type Message struct {
	From      string       `json:"from" validate:"required,digits"`
	ID        string       `json:"id" validate:"required"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *MessageText `json:"text,omitempty"`
}

type MessageText struct {
	Body string `json:"body"`
}

// textMessages flattens every text message of every entry and change.
func (p Payload) textMessages() []Message {
	var out []Message
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			for _, m := range ch.Value.Messages {
				if m.Type == "text" && m.Text != nil {
					out = append(out, m)
				}
			}
		}
	}
	return out
}
