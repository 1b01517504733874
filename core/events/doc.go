// Package events defines the closed set of events flowing through the
// engine: feed input (orders, shifts, positions, driver status), the
// transitions the state machine records, and re-optimization requests.
//
// Feed messages arrive as JSON envelopes and are decoded at the system
// boundary; unknown types are rejected there and never reach the
// trigger manager.
package events
