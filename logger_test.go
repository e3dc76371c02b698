package bullq

import "testing"

func TestFmtLoggerDoesNotPanic(t *testing.T) {
	l := NewFmtLogger()
	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)
}

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	var l Logger = noopLogger{}
	l.Debugf("x")
	l.Infof("x")
	l.Warnf("x")
	l.Errorf("x")
}
