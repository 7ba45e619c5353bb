package models

import "time"

// ReferenceLevels are the auction reference prices derived from a session profile.
type ReferenceLevels struct {
	POC               float64 `json:"poc"`
	VAH               float64 `json:"vah"`
	VAL               float64 `json:"val"`
	POCVolume         int64   `json:"poc_volume"`
	ValueAreaVolume   int64   `json:"value_area_volume"`
	ValueAreaFraction float64 `json:"value_area_fraction"`
	TotalVolume       int64   `json:"total_volume"`
}

// PriceLevel is one discretized price with its accumulated session volume.
type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
}

type Significance string

const (
	SignificanceMajor       Significance = "MAJOR"
	SignificanceSignificant Significance = "SIGNIFICANT"
	SignificanceModerate    Significance = "MODERATE"
	SignificanceMinor       Significance = "MINOR"
)

type NodeStrength string

const (
	StrengthVeryStrong NodeStrength = "VERY_STRONG"
	StrengthStrong     NodeStrength = "STRONG"
	StrengthModerate   NodeStrength = "MODERATE"
	StrengthWeak       NodeStrength = "WEAK"
)

// HVNZone is a contiguous high volume plateau around a local volume peak.
type HVNZone struct {
	Low          float64      `json:"low"`
	High         float64      `json:"high"`
	PeakPrice    float64      `json:"peak_price"`
	PeakVolume   int64        `json:"peak_volume"`
	TotalVolume  int64        `json:"total_volume"`
	Significance Significance `json:"significance"`
	Strength     NodeStrength `json:"strength"`
}

type GapStrength string

const (
	GapExtreme  GapStrength = "EXTREME"
	GapStrong   GapStrength = "STRONG"
	GapModerate GapStrength = "MODERATE"
	GapWeak     GapStrength = "WEAK"
)

type GapType string

const (
	GapSeparation    GapType = "SEPARATION"
	GapRejectionUp   GapType = "REJECTION_UP"
	GapRejectionDown GapType = "REJECTION_DOWN"
	GapNeutral       GapType = "NEUTRAL"
)

// LVNGap is a run of thin price levels inside the profile.
type LVNGap struct {
	Low       float64     `json:"low"`
	High      float64     `json:"high"`
	Levels    int         `json:"levels"`
	AvgVolume float64     `json:"avg_volume"`
	MinVolume int64       `json:"min_volume"`
	Strength  GapStrength `json:"strength"`
	Type      GapType     `json:"type"`
}

// InitialBalance is the range traded during the opening window of a session.
type InitialBalance struct {
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume int64   `json:"volume"`
	Set    bool    `json:"set"`
}

// Range returns High-Low, or zero when no IB trade was seen.
func (ib InitialBalance) Range() float64 {
	if !ib.Set {
		return 0
	}
	return ib.High - ib.Low
}

type DayType string

const (
	DayNormal             DayType = "NORMAL"
	DayNormalVariation    DayType = "NORMAL_VARIATION"
	DayTrend              DayType = "TREND"
	DayDoubleDistribution DayType = "DOUBLE_DISTRIBUTION"
	DayNeutral            DayType = "NEUTRAL"
	DayUnknown            DayType = "UNKNOWN"
)

type SessionPhase string

const (
	PhaseOpening    SessionPhase = "OPENING"
	PhaseMidSession SessionPhase = "MID_SESSION"
	PhaseLate       SessionPhase = "LATE_SESSION"
	PhaseAfterHours SessionPhase = "AFTER_HOURS"
)

// NakedPOC is a prior session POC that price has not traded back through.
type NakedPOC struct {
	Symbol     string    `json:"symbol,omitempty" db:"symbol"`
	Price      float64   `json:"price" db:"price"`
	Strength   float64   `json:"strength" db:"strength"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
	Tested     bool      `json:"tested" db:"tested"`
}

type ValueAreaPosition string

const (
	PositionAbove  ValueAreaPosition = "ABOVE"
	PositionInside ValueAreaPosition = "INSIDE"
	PositionBelow  ValueAreaPosition = "BELOW"
)

// Environment is the auction context around the latest tick.
type Environment struct {
	ValueAreaPosition ValueAreaPosition `json:"value_area_position"`
	POCDistance       float64           `json:"poc_distance"` // ticks, signed (price - poc)
	NearestHVN        *HVNZone          `json:"nearest_hvn,omitempty"`
	NearestLVN        *LVNGap           `json:"nearest_lvn,omitempty"`
	DayType           DayType           `json:"day_type"`
	SessionPhase      SessionPhase      `json:"session_phase"`
}

// Debug carries the per-tick diagnostics returned to the host.
type Debug struct {
	Reason        string  `json:"reason"`
	POC           float64 `json:"poc"`
	VAH           float64 `json:"vah"`
	VAL           float64 `json:"val"`
	HVNZoneCount  int     `json:"hvn_zone_count"`
	LVNGapCount   int     `json:"lvn_gap_count"`
	NakedPOCCount int     `json:"naked_poc_count"`
}

// TickResult is returned for every tick fed to an engine.
type TickResult struct {
	Ready       bool              `json:"ready"`
	Signal      *SignalDescriptor `json:"signal,omitempty"`
	Environment Environment       `json:"environment"`
	Debug       Debug             `json:"debug"`
	Scores      []SignalScore     `json:"scores,omitempty"`
}

// ProfileSnapshot is a read-only copy of an engine's current state.
type ProfileSnapshot struct {
	Symbol         string           `json:"symbol"`
	Ready          bool             `json:"ready"`
	SessionStart   time.Time        `json:"session_start"`
	LastTick       time.Time        `json:"last_tick"`
	LastPrice      float64          `json:"last_price"`
	TickCount      int              `json:"tick_count"`
	SessionHigh    float64          `json:"session_high"`
	SessionLow     float64          `json:"session_low"`
	InitialBalance InitialBalance   `json:"initial_balance"`
	Levels         *ReferenceLevels `json:"levels,omitempty"`
	HVNZones       []HVNZone        `json:"hvn_zones"`
	LVNGaps        []LVNGap         `json:"lvn_gaps"`
	DayType        DayType          `json:"day_type"`
	SessionPhase   SessionPhase     `json:"session_phase"`
	NakedPOCs      []NakedPOC       `json:"naked_pocs"`
	Scores         []SignalScore    `json:"scores,omitempty"`
	Profile        []PriceLevel     `json:"profile,omitempty"`
}

// SessionSummary describes a closed session handed to persistence hooks.
type SessionSummary struct {
	Symbol    string           `json:"symbol"`
	Start     time.Time        `json:"start"`
	ClosedAt  time.Time        `json:"closed_at"`
	Levels    *ReferenceLevels `json:"levels,omitempty"`
	DayType   DayType          `json:"day_type"`
	NakedPOCs []NakedPOC       `json:"naked_pocs"`
}
