package profile

import "errors"

// Error kinds surfaced by the engine. Per-tick kinds never escape Process;
// they are reported through TickResult.Debug.Reason.
var (
	ErrInvalidTick          = errors.New("InvalidTick")
	ErrOutOfOrder           = errors.New("OutOfOrderTick")
	ErrNotReady             = errors.New("NotReady")
	ErrBootstrapUnavailable = errors.New("BootstrapUnavailable")
	ErrConfigurationInvalid = errors.New("ConfigurationInvalid")
)

// Debug reasons that are not errors.
const (
	ReasonOK            = "OK"
	ReasonBlockedDaily  = "SignalBlocked:DailyPositions"
	ReasonBlockedLosses = "SignalBlocked:ConsecutiveLosses"
)
