package ptp

import "time"

// transport abstracts the event/general multicast sockets a Port sends
// and receives PTP datagrams over (spec §4.6.1's timing message flows).
// The real implementation binds UDP sockets on ports 319/320 with
// SO_TIMESTAMPING enabled, following facebook-time's sptp client UDPConn
// split between a timestamped "event" socket and a plain "general"
// socket. This module contains no concrete implementation and nothing in
// it constructs a Port with one, so tests here only ever see a fake.
type transport interface {
	// SendEvent transmits data on the event (319) socket. It returns only
	// an error; the caller tracks the sequence id it put in data.
	SendEvent(data []byte) error
	// SendGeneral transmits data on the general (320) socket, untimestamped.
	SendGeneral(data []byte) error
}

// txTimestampSource abstracts the kernel error-queue poll that recovers a
// hardware transmit timestamp for a previously sent event-socket packet
// (spec §4.6.1: "extract hardware transmit timestamps from the kernel
// error-queue on each sent event packet, correlate them to in-flight
// sequence ids").
type txTimestampSource interface {
	// PollTXTimestamp returns the hardware TX timestamp for sequenceID,
	// or ok=false if it has not arrived yet (caller should retry on the
	// next reactor tick, up to a bounded number of attempts before
	// raising NO_TX_TIMESTAMPS).
	PollTXTimestamp(sequenceID uint16) (ts time.Time, ok bool, err error)
}
