package models

import "time"

// SignalType is the setup family a signal belongs to.
type SignalType string

const (
	SignalNakedPOCTest      SignalType = "NAKED_POC_TEST"
	SignalValueAreaRotation SignalType = "VALUE_AREA_ROTATION"
	SignalHVNRangeFade      SignalType = "HVN_RANGE_FADE"
	SignalLVNBreakout       SignalType = "LVN_BREAKOUT"
	SignalPOCRejection      SignalType = "POC_REJECTION"
)

// SignalPriority is the fixed firing order when several setups trigger on one tick.
var SignalPriority = []SignalType{
	SignalNakedPOCTest,
	SignalValueAreaRotation,
	SignalHVNRangeFade,
	SignalLVNBreakout,
	SignalPOCRejection,
}

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// SignalScore is the continuous 0..10 early-warning score of one setup.
type SignalScore struct {
	Setup SignalType `json:"setup"`
	Score float64    `json:"score"`
}

// SignalDescriptor is an advisory trade setup emitted by the engine.
type SignalDescriptor struct {
	ID                 string     `json:"id"`
	Symbol             string     `json:"symbol,omitempty"`
	Type               SignalType `json:"type"`
	Direction          Direction  `json:"direction"`
	EntryPrice         float64    `json:"entry_price"`
	Stop               float64    `json:"stop"`
	Target             float64    `json:"target"`
	Confidence         float64    `json:"confidence"`
	ExpectedWinRate    float64    `json:"expected_win_rate"`
	ExpectedRewardRisk float64    `json:"expected_reward_risk"`
	Reasoning          string     `json:"reasoning"`
	Timestamp          time.Time  `json:"timestamp"`
}

// HostCounters are read-only risk counters owned by the host.
type HostCounters struct {
	DailyPositions    int `json:"daily_positions"`
	ConsecutiveLosses int `json:"consecutive_losses"`
}
