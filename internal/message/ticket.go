package message

import (
	"github.com/rzbill/docq/pkg/id"
)

const (
	ticketHandled   = "handled"
	ticketMessageID = "messageId"
	ticketQueue     = "queueName"
)

// Ticket identifies the stored document behind a message together with the
// handled value observed when the ticket was issued.
type Ticket struct {
	Handled   bool
	MessageID id.ID
	Queue     string
}

// toMap is the metadata representation, kept to scalar values so the ticket
// survives any serializer the caller may push metadata through.
func (t Ticket) toMap() map[string]any {
	return map[string]any{
		ticketHandled:   t.Handled,
		ticketMessageID: t.MessageID.String(),
		ticketQueue:     t.Queue,
	}
}

// EmbedTicket stores t in md under key.
func EmbedTicket(md Metadata, key string, t Ticket) {
	md[key] = t.toMap()
}

// TicketFrom extracts a complete ticket from md[key]. ok is false when the
// ticket is absent or any field is missing or malformed.
func TicketFrom(md Metadata, key string) (Ticket, bool) {
	raw, ok := md[key]
	if !ok {
		return Ticket{}, false
	}
	switch v := raw.(type) {
	case Ticket:
		return v, !v.MessageID.IsZero()
	case *Ticket:
		if v == nil {
			return Ticket{}, false
		}
		return *v, !v.MessageID.IsZero()
	case map[string]any:
		return ticketFromMap(v)
	case Metadata:
		return ticketFromMap(v)
	default:
		return Ticket{}, false
	}
}

func ticketFromMap(m map[string]any) (Ticket, bool) {
	handled, ok := m[ticketHandled].(bool)
	if !ok {
		return Ticket{}, false
	}
	var docID id.ID
	switch raw := m[ticketMessageID].(type) {
	case string:
		parsed, err := id.Parse(raw)
		if err != nil {
			return Ticket{}, false
		}
		docID = parsed
	case id.ID:
		docID = raw
	default:
		return Ticket{}, false
	}
	if docID.IsZero() {
		return Ticket{}, false
	}
	queue, _ := m[ticketQueue].(string)
	return Ticket{Handled: handled, MessageID: docID, Queue: queue}, true
}

// Embed stores t in the message metadata, allocating it when nil.
func (m *Message) Embed(key string, t Ticket) {
	if m.Metadata == nil {
		m.Metadata = Metadata{}
	}
	EmbedTicket(m.Metadata, key, t)
}

// Ticket returns the message's delivery ticket under key.
func (m *Message) Ticket(key string) (Ticket, bool) {
	if m.Metadata == nil {
		return Ticket{}, false
	}
	return TicketFrom(m.Metadata, key)
}

// CleanTicket removes any ticket stored under key.
func (m *Message) CleanTicket(key string) {
	if m.Metadata != nil {
		delete(m.Metadata, key)
	}
}
