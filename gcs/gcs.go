// gcs/gcs.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package gcs provides the ground control station text-messaging sink
// used for pilot-visible status output. The engine only ever talks to
// the Sink interface; hosts decide where messages actually go.
package gcs

import (
	"time"

	"github.com/avsoar/soarnav/log"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Severity int

const (
	SeverityCritical Severity = iota
	SeverityError
	SeverityWarning
	SeverityInfo
	SeverityDebug
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInfo:
		return "INFO"
	case SeverityDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

type Sink interface {
	Send(sev Severity, text string)
}

// LoggerSink forwards GCS messages to the structured log.
type LoggerSink struct {
	Logger *log.Logger
}

func (ls *LoggerSink) Send(sev Severity, text string) {
	switch sev {
	case SeverityCritical, SeverityError:
		ls.Logger.Errorf("GCS: %s", text)
	case SeverityWarning:
		ls.Logger.Warnf("GCS: %s", text)
	default:
		ls.Logger.Infof("GCS: %s", text)
	}
}

// FuncSink adapts a plain function to Sink; handy for tests.
type FuncSink func(sev Severity, text string)

func (f FuncSink) Send(sev Severity, text string) { f(sev, text) }

// Deduping wraps a Sink and drops messages whose text was already sent
// within the suppression window. The telemetry link to the GCS is slow
// and repeated identical warnings just scroll useful messages away.
type Deduping struct {
	sink Sink
	seen *expirable.LRU[string, struct{}]
}

func NewDeduping(sink Sink, window time.Duration) *Deduping {
	return &Deduping{
		sink: sink,
		seen: expirable.NewLRU[string, struct{}](128, nil, window),
	}
}

func (d *Deduping) Send(sev Severity, text string) {
	// Critical messages always go through.
	if sev != SeverityCritical {
		if _, ok := d.seen.Get(text); ok {
			return
		}
	}
	d.seen.Add(text, struct{}{})
	d.sink.Send(sev, text)
}
