// Package services defines the error markers shared by the packlist sources,
// the packlist manager and the control surfaces.
//
// Failures are tagged with one of the exported sentinel errors through Wrap
// so callers can decide, without string matching, whether an operation is
// worth retrying (Retryable) and how a control surface should report it
// (HTTPStatus).
package services
