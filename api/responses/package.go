// Package responses writes negotiated responses: HTML pages for browsers, JSON envelopes
// for API clients, and RFC 7807 problem details for errors.
package responses
