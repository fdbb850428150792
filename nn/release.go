//go:build !debug
// +build !debug

package nn

type lumberjack struct{}

func makeLumberJack() lumberjack { return lumberjack{} }

func (l *lumberjack) log(msg string, args ...interface{}) {}

func (l *lumberjack) Log() string { return "" }
