// Package handlers contains HTTP request handlers organized by business domain.
// All handlers follow consistent patterns for error handling, validation, and response formatting.
package handlers
