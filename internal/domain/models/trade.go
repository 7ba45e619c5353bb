package models

import "time"

// Trade is a raw trade print as delivered by a market stream or the ticks topic.
type Trade struct {
	Symbol    string
	Timestamp int64 // unix milliseconds
	Price     float64
	Volume    float64
}

// Time returns the trade timestamp as time.Time.
func (t *Trade) Time() time.Time { return time.UnixMilli(t.Timestamp) }

// Tick is the engine input: one trade for a single instrument.
// VolumeMissing marks hosts that cannot supply true volume; the engine then
// substitutes its configured placeholder.
type Tick struct {
	Price         float64
	Volume        int64
	VolumeMissing bool
	Time          time.Time
}

// Candle represents an OHLCV bar used to seed a session profile.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
