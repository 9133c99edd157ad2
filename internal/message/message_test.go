package message

import (
	"testing"

	"github.com/rzbill/docq/pkg/id"
)

func TestTicketRoundTrip(t *testing.T) {
	m := New([]byte("x"))
	want := Ticket{Handled: true, MessageID: id.NewGenerator().Next(), Queue: "orders"}
	m.Embed("__queue", want)
	got, ok := m.Ticket("__queue")
	if !ok {
		t.Fatalf("expected ticket")
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	m.CleanTicket("__queue")
	if _, ok := m.Ticket("__queue"); ok {
		t.Fatalf("ticket should be gone")
	}
}

func TestTicketIncomplete(t *testing.T) {
	cases := []Metadata{
		{},
		{"k": map[string]any{"messageId": id.NewGenerator().Next().String()}},
		{"k": map[string]any{"handled": true}},
		{"k": map[string]any{"handled": true, "messageId": "not-an-id"}},
		{"k": "garbage"},
	}
	for i, md := range cases {
		if _, ok := TicketFrom(md, "k"); ok {
			t.Fatalf("case %d: expected incomplete ticket", i)
		}
	}
}

type order struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func TestRegistryJSON(t *testing.T) {
	reg := NewRegistry()
	RegisterJSON[order](reg, "order")
	msg, err := NewJSON("order", order{SKU: "a-1", Qty: 2})
	if err != nil {
		t.Fatalf("new json: %v", err)
	}
	got, err := reg.Decode(Envelope{Class: "order", Content: msg.Content, Metadata: Metadata{"m": 1}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	body, ok := got.Body.(order)
	if !ok || body.SKU != "a-1" || body.Qty != 2 {
		t.Fatalf("unexpected body %#v", got.Body)
	}
	if got.Metadata["m"] != 1 {
		t.Fatalf("metadata not carried")
	}
}

func TestRegistryUnknownClassIsRaw(t *testing.T) {
	reg := NewRegistry()
	got, err := reg.Decode(Envelope{Class: "mystery", Content: []byte("raw")})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Class != "mystery" || string(got.Content) != "raw" || got.Body != nil {
		t.Fatalf("unexpected %#v", got)
	}
}

func TestListSetSkipsUndecodable(t *testing.T) {
	reg := NewRegistry()
	RegisterJSON[order](reg, "order")
	set := NewListSetFactory(reg)("q", []Envelope{
		{Class: "order", Content: []byte(`{"sku":"x"}`)},
		{Class: "order", Content: []byte(`{bad`)},
	})
	if set.Len() != 2 || set.Queue() != "q" {
		t.Fatalf("unexpected set shape")
	}
	msgs, err := set.Messages()
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if len(msgs) != 1 {
		t.Fatalf("want 1 decoded message, got %d", len(msgs))
	}
}
