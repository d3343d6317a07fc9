package logger

import "fmt"

// AsynqAdapter satisfies asynq.Logger on top of *Logger.
type AsynqAdapter struct {
	L *Logger
}

func (a AsynqAdapter) Debug(args ...interface{}) { a.L.Debug(fmt.Sprint(args...)) }
func (a AsynqAdapter) Info(args ...interface{})  { a.L.Info(fmt.Sprint(args...)) }
func (a AsynqAdapter) Warn(args ...interface{})  { a.L.Warn(fmt.Sprint(args...)) }
func (a AsynqAdapter) Error(args ...interface{}) { a.L.Error(fmt.Sprint(args...)) }
func (a AsynqAdapter) Fatal(args ...interface{}) { a.L.Fatal(fmt.Sprint(args...)) }
