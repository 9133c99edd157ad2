package adapter

import (
	"context"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/internal/envelope"
	"github.com/rzbill/docq/internal/errdefs"
	"github.com/rzbill/docq/internal/message"
	"github.com/rzbill/docq/pkg/id"
)

// claim marks the document docID handled and returns its envelope with the
// handled ticket embedded. ok is false when another receiver got there first
// or the document is gone.
func (b *base) claim(ctx context.Context, coll docstore.Collection, q Queue, docID id.ID) (message.Envelope, bool, error) {
	pre, found, err := coll.ClaimOne(ctx, docID)
	if err != nil {
		return message.Envelope{}, false, errdefs.Store("claim", q.Name, err)
	}
	if !found || pre.Handled {
		b.obs.Claimed(q.Name, false)
		return message.Envelope{}, false, nil
	}
	b.obs.Claimed(q.Name, true)
	env := envelope.Decode(pre)
	message.EmbedTicket(env.Metadata, q.Options.MetadataKey, message.Ticket{Handled: true, MessageID: pre.ID, Queue: q.Name})
	return env, true, nil
}
