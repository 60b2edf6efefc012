package scraper

import "errors"

var (
	// ErrAuthenticationRequired means no valid session existed and the
	// manual login window lapsed. Fatal for the current invocation only.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrTransientNetwork covers proxy probes, navigation and browser
	// launch failures. The response is marked failed and becomes eligible
	// again once the freshness window lapses.
	ErrTransientNetwork = errors.New("transient network failure")

	ErrUnknownPlatform = errors.New("unknown platform")
)
