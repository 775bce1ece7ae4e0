package notify

import (
	"github.com/fxamacker/cbor/v2"
)

// Phase identifies where in a workflow's lifecycle an Event was
// raised.
type Phase string

const (
	PhaseStarted      Phase = "started"
	PhasePutFinger    Phase = "put_finger"
	PhaseRemoveFinger Phase = "remove_finger"
	PhaseTransferring Phase = "transferring"
	PhaseSucceeded    Phase = "succeeded"
	PhaseFailed       Phase = "failed"
	PhaseCancelled    Phase = "cancelled"
)

// Event is the CBOR envelope published for every workflow lifecycle
// transition. Fields irrelevant to a given Phase are left zero and
// omitted from the wire encoding.
type Event struct {
	Workflow string `cbor:"workflow"`
	Phase    Phase  `cbor:"phase"`
	Slot     uint16 `cbor:"slot,omitempty"`
	MatchID  uint16 `cbor:"match_id,omitempty"`
	Score    int    `cbor:"score,omitempty"`
	Count    uint16 `cbor:"count,omitempty"`
	Error    string `cbor:"error,omitempty"`
}

// publishEvent encodes ev as CBOR and publishes it on the status channel,
// logging (via the caller) rather than failing the workflow if Redis
// is unreachable.
func (c *Client) publishEvent(ev Event) error {
	payload, err := cbor.Marshal(ev)
	if err != nil {
		return err
	}
	return c.Publish(KeyStatusChannel, payload)
}
