package event

// DeriveStatus is the single place an account's view of an event is
// computed. A nil event is not_found.
func DeriveStatus(ev *Event, registered bool) Status {
	switch {
	case ev == nil:
		return StatusNotFound
	case registered:
		return StatusRegistered
	case ev.RegisteredCount >= ev.Capacity:
		return StatusFull
	default:
		return StatusAvailable
	}
}
