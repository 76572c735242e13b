package core

import (
	"sync/atomic"
	"time"
)

// MonitoringHooks observes the traffic sent to Overpass and Wikidata.
// Unset fields are skipped.
type MonitoringHooks struct {
	OnRequest   func(service, operation string)
	OnResponse  func(service, operation string, duration time.Duration, success bool)
	OnRateLimit func(service string, wait time.Duration)
	OnRetry     func(service string, attempt int)
	OnError     func(service, errorType string)
}

var hooks atomic.Pointer[MonitoringHooks]

// SetMonitoringHooks installs h for every service client. nil removes them.
func SetMonitoringHooks(h *MonitoringHooks) {
	hooks.Store(h)
}

// observe returns the installed hooks. The zero value is returned when none
// are set so callers never check for nil.
func observe() *MonitoringHooks {
	if h := hooks.Load(); h != nil {
		return h
	}
	return &MonitoringHooks{}
}

func (h *MonitoringHooks) request(service, operation string) {
	if h.OnRequest != nil {
		h.OnRequest(service, operation)
	}
}

func (h *MonitoringHooks) response(service, operation string, took time.Duration, success bool) {
	if h.OnResponse != nil {
		h.OnResponse(service, operation, took, success)
	}
}

func (h *MonitoringHooks) rateLimited(service string, wait time.Duration) {
	if h.OnRateLimit != nil {
		h.OnRateLimit(service, wait)
	}
}

func (h *MonitoringHooks) retry(service string, attempt int) {
	if h.OnRetry != nil {
		h.OnRetry(service, attempt)
	}
}

func (h *MonitoringHooks) failed(service, errorType string) {
	if h.OnError != nil {
		h.OnError(service, errorType)
	}
}
