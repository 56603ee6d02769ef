package model

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaNotice is returned when the provider keeps answering with a
	// rate-limit notice after the cooldown budget is spent.
	ErrQuotaNotice = errors.New("provider quota notice persisted")
	// ErrNoRecords marks a symbol whose response held no usable records.
	ErrNoRecords = errors.New("no usable records")
)

// ConfigurationError is fatal and only raised before a run starts.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Message, e.Cause)
	}
	return "configuration: " + e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// FetchError is returned once all transport attempts for a symbol failed.
type FetchError struct {
	Symbol   Symbol
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Symbol, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ProviderError carries the provider's explicit error message. Not retried.
type ProviderError struct {
	Symbol  Symbol
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error for %s: %s", e.Symbol, e.Message)
}

// StoreError wraps a failed insert for one symbol.
type StoreError struct {
	Symbol Symbol
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Symbol, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// BatchAbortError is returned after a full sweep when too many symbols failed.
type BatchAbortError struct {
	Failed int
	Total  int
}

func (e *BatchAbortError) Error() string {
	return fmt.Sprintf("too many failures: %d/%d symbols failed", e.Failed, e.Total)
}
