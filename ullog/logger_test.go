package ullog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNopLoggerDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop.Debugf("x %d", 1)
		Nop.Infof("x")
		Nop.Warnf("x")
		Nop.Errorf("x")
	})
}

func TestRecordingLoggerCapturesFormattedMessages(t *testing.T) {
	r := &Recording{}
	r.Infof("connected to %s", "SCP")
	r.Errorf("failed after %d retries", 3)
	assert.Equal(t, []string{"connected to SCP", "failed after 3 retries"}, r.Messages)
}
