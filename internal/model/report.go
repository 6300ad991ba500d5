package model

import "time"

// TickReport is the full output bundle produced by one engine tick. It is
// shared verbatim by the audit sink, the Pub/Sub broadcaster, the WebSocket
// hub, and the /snapshot HTTP handler, so every ambient consumer observes
// exactly what the engine itself computed.
type TickReport struct {
	TraceID    string    `json:"trace_id"`
	TS         time.Time `json:"ts"`
	Prices     map[Metal]float64 `json:"prices_per_gram"`
	Volatility map[Metal]float64 `json:"volatility"`
	Regime     Regime            `json:"regime"`
	RegimeDuration int           `json:"regime_duration"`
	Risk       RiskAdjustedParams `json:"risk"`
	Weights    WeightVector       `json:"weights"`
	Index      float64            `json:"index_usd_per_gram"`
	Published  bool               `json:"published"`
	PublishErr string             `json:"publish_error,omitempty"`
	TickErr    string             `json:"tick_error,omitempty"`
}
