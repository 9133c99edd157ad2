// Package message holds the values exchanged with queue consumers: the
// mutable Message, the decoded Envelope, the delivery Ticket stashed in a
// message's metadata, the Set result container and the class Registry that
// turns envelopes back into typed messages.
//
// A Ticket is what lets a consumer delete exactly the document it received:
//
//	set, _ := std.Receive(ctx, q, 10, adapter.ReceiveParams{})
//	for _, m := range set.Messages() {
//	    process(m)
//	    _, _ = std.DeleteMessage(ctx, q, m)
//	}
package message
