package eventstream

import "errors"

// ErrNilTurnEvent is returned by publishers asked to publish a nil turn.
var ErrNilTurnEvent = errors.New("nil turn event")
