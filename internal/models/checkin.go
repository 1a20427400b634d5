package models

import "time"

// Checkin is a local record of the user's presence at a location. The
// record is owned by the event store; the sync subsystem only reads it.
type Checkin struct {
	ID             string
	LocationIDHash []byte
	Start          time.Time
	End            time.Time
}
