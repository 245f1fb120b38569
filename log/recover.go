// log/recover.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

// CatchAndRecover recovers a panic in the calling goroutine, logs it,
// and hands it to onPanic (if non-nil). For deferred use at goroutine
// entry points that must not take the process down.
func CatchAndRecover(lg *Logger, onPanic func(any)) {
	if r := recover(); r != nil {
		lg.Errorf("panic: %v", r)
		if onPanic != nil {
			onPanic(r)
		}
	}
}
