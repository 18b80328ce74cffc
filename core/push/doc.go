// Package push subscribes to a feed's websocket and delivers its frames as an ordered
// event stream.
//
// A Channel reconnects on its own with exponential backoff. Each successful connect
// emits EventConnected, so the consumer can tell that messages may have been missed
// while the link was down and resync. Text frames become EventMessage in arrival
// order; empty and binary frames are treated as keepalives and dropped.
//
// Delivery blocks when the consumer falls behind, which applies back-pressure to the
// socket instead of dropping notifications.
package push
