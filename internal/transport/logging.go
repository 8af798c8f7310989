// SPDX-License-Identifier: MIT
package transport

import (
	"formant/internal/control"
	"formant/internal/log"
)

// LoggingTransport reports detections and sent data through the logger.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Report logs the detection line of a completed recording.
func (lt *LoggingTransport) Report(r control.Report) error {
	log.Infof("Report: %s [%s, frame %d, buffer %s]", r.Result.Formant.Message(), r.Result.Formant, r.Result.Seq, r.Result.Buffer)
	return nil
}

// Event logs a state transition at debug level.
func (lt *LoggingTransport) Event(e control.Event) {
	log.Debugf("Event: %s at frame %d", e.Kind, e.Seq)
}

// Send logs the received data at debug level.
func (lt *LoggingTransport) Send(data any) error {
	log.Debugf("Transport: Send (%T): %+v", data, data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("Transport: LoggingTransport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interfaces at compile time.
var (
	_ Transport         = (*LoggingTransport)(nil)
	_ control.Reporter  = (*LoggingTransport)(nil)
	_ control.EventSink = (*LoggingTransport)(nil)
)
