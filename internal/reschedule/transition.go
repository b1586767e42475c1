package reschedule

import "time"

// Effect is one side effect of a state transition. Effects are listed in the
// order they must be applied.
type Effect string

const (
	EffectExpireRequest     Effect = "expire_request"
	EffectMoveAppointment   Effect = "move_appointment"
	EffectSyncSlot          Effect = "sync_slot"
	EffectCancelAppointment Effect = "cancel_appointment"
	EffectRemoveSlot        Effect = "remove_slot"
	EffectRefund            Effect = "refund" // paid appointments only
	EffectRecordResponse    Effect = "record_response"
	EffectNotifyProvider    Effect = "notify_provider"
	EffectNotifyExpiry      Effect = "notify_expiry"
)

var expiryEffects = []Effect{EffectExpireRequest, EffectNotifyExpiry}

type Decision struct {
	Next    Status
	Effects []Effect
	Err     error
}

// Transition decides what a response does to a request. It performs no I/O.
//
// The request status write is the last domain write of both the accept and
// the decline path, so a failure before it leaves the request pending.
func Transition(current Status, action Action, now, expiresAt time.Time) Decision {
	if !action.Valid() {
		return Decision{Next: current, Err: ErrInvalidArgument}
	}
	if current != StatusPending {
		return Decision{Next: current, Err: ErrRequestAlreadyProcessed}
	}
	if !now.Before(expiresAt) {
		return Decision{Next: StatusExpired, Effects: expiryEffects, Err: ErrRequestExpired}
	}

	switch action {
	case ActionAccept:
		return Decision{
			Next: StatusAccepted,
			Effects: []Effect{
				EffectMoveAppointment,
				EffectSyncSlot,
				EffectRecordResponse,
				EffectNotifyProvider,
			},
		}
	default:
		return Decision{
			Next: StatusDeclined,
			Effects: []Effect{
				EffectCancelAppointment,
				EffectRemoveSlot,
				EffectRefund,
				EffectRecordResponse,
				EffectNotifyProvider,
			},
		}
	}
}
