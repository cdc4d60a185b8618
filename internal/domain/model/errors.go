package model

import "errors"

var (
	// ErrProviderTimeout indicates the provider did not answer within its
	// timeout budget. Retryable, counts toward the breaker.
	ErrProviderTimeout = errors.New("provider timed out")

	// ErrProviderUnavailable indicates the provider's circuit breaker is
	// open and the call was rejected without being attempted.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected indicates a non-retryable 4xx answer. Persistent
	// rejections point at an outage or a contract mismatch, so these count
	// toward the breaker.
	ErrProviderRejected = errors.New("provider rejected the request")

	// ErrImageRejected indicates the provider could not work with this
	// specific image. Unlike ErrProviderRejected it says nothing about the
	// provider's health and must not move the breaker.
	ErrImageRejected = errors.New("provider rejected the image")

	// ErrInvalidResponse indicates the provider answered with a payload
	// that could not be decoded.
	ErrInvalidResponse = errors.New("provider returned an invalid response")

	// ErrAllProvidersFailed is the only provider-level failure surfaced to
	// the caller; it means no provider produced a usable result.
	ErrAllProvidersFailed = errors.New("all identification providers failed")

	// ErrLockWaitExpired indicates the bounded wait for another holder's
	// result elapsed. Never fatal; the caller recomputes.
	ErrLockWaitExpired = errors.New("timed out waiting for in-flight identification")

	// ErrNoImage indicates an identification request without image bytes.
	ErrNoImage = errors.New("identification request carries no image")
)
