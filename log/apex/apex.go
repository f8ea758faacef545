// Package apex adapts github.com/apex/log to rendercache.Logger.
package apex

import (
	"github.com/apex/log"

	"github.com/unkn0wn-root/rendercache"
)

var _ rendercache.Logger = Logger{}

// Logger logs through L, or the apex package logger when L is nil.
type Logger struct{ L log.Interface }

func (a Logger) entry(f rendercache.Fields) *log.Entry {
	var l log.Interface = log.Log
	if a.L != nil {
		l = a.L
	}
	return l.WithFields(log.Fields(f))
}

func (a Logger) Debug(msg string, f rendercache.Fields) { a.entry(f).Debug(msg) }
func (a Logger) Info(msg string, f rendercache.Fields)  { a.entry(f).Info(msg) }
func (a Logger) Warn(msg string, f rendercache.Fields)  { a.entry(f).Warn(msg) }
func (a Logger) Error(msg string, f rendercache.Fields) { a.entry(f).Error(msg) }
