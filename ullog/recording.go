package ullog

import "fmt"

// Recording is a Logger that stores every formatted message instead of
// emitting it, for use in tests that assert on engine logging behavior.
type Recording struct {
	Messages []string
}

func (r *Recording) Debugf(format string, args ...interface{}) { r.record(format, args...) }
func (r *Recording) Infof(format string, args ...interface{})  { r.record(format, args...) }
func (r *Recording) Warnf(format string, args ...interface{})  { r.record(format, args...) }
func (r *Recording) Errorf(format string, args ...interface{}) { r.record(format, args...) }

func (r *Recording) record(format string, args ...interface{}) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}
