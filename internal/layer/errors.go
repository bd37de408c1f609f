package layer

import "errors"

var (
	// ErrNoSource indicates a layer has no usable elevation source and is not
	// running cache-only.
	ErrNoSource = errors.New("layer: no usable elevation source")
	// ErrDisabled indicates the layer is disabled or invisible.
	ErrDisabled = errors.New("layer: layer is disabled")
	// ErrOutOfRange indicates a tile address outside the layer's legal level
	// window. Callers exclude the layer silently rather than failing.
	ErrOutOfRange = errors.New("layer: tile address outside legal level range")
	// ErrBlacklisted indicates the source previously failed for this address.
	ErrBlacklisted = errors.New("layer: tile address is blacklisted")
	// ErrMalformedGrid indicates a source or cache produced a grid failing
	// structural validation.
	ErrMalformedGrid = errors.New("layer: malformed heightfield grid")
	// ErrCancelled indicates the request was cancelled mid-fetch; the address
	// is not blacklisted so future attempts may succeed.
	ErrCancelled = errors.New("layer: request cancelled")
	// ErrRetryRequested indicates the fetch should be retried later; like
	// cancellation it suppresses blacklisting.
	ErrRetryRequested = errors.New("layer: retry requested")
	// ErrNoData indicates the source has nothing for this address.
	ErrNoData = errors.New("layer: no data for tile address")
)
