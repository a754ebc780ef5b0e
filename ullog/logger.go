// Package ullog defines the narrow logging interface the service engine
// depends on, plus a default implementation backed by
// github.com/grailbio/go-dicom/dicomlog, a verbosity-leveled logger.
package ullog

import "github.com/grailbio/go-dicom/dicomlog"

// Logger is the logging collaborator the connection and its handlers use.
// Destination and formatting policy belong to the implementation; the
// engine only chooses a level and a message.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// dicomlogLogger maps Logger's four levels onto dicomlog.Vprintf's
// verbosity scale: 0 for failures and protocol-level events worth always
// seeing, 1 for per-message traffic, 2 for frame-level tracing.
type dicomlogLogger struct{}

// Default is the package-level Logger backed by dicomlog.Vprintf.
var Default Logger = dicomlogLogger{}

func (dicomlogLogger) Debugf(format string, args ...interface{}) { dicomlog.Vprintf(2, format, args...) }
func (dicomlogLogger) Infof(format string, args ...interface{})  { dicomlog.Vprintf(1, format, args...) }
func (dicomlogLogger) Warnf(format string, args ...interface{})  { dicomlog.Vprintf(0, format, args...) }
func (dicomlogLogger) Errorf(format string, args ...interface{}) { dicomlog.Vprintf(0, format, args...) }

// Nop discards every message; useful for tests and for hosts that don't
// want engine logging at all.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
