package listing

import (
	"fmt"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier carried by intake errors.
type Code string

const (
	CodeValidationInvalid   Code = "listing.validation.invalid"
	CodeSessionNotFound     Code = "listing.session.not_found"
	CodeTransitionIgnored   Code = "listing.transition.ignored"
	CodeAlbumFull           Code = "listing.album.full"
	CodeAlbumEmpty          Code = "listing.album.empty"
	CodeMediaResolveFailure Code = "listing.media.resolve_failure"
	CodeComposeFailure      Code = "listing.compose.failure"
	CodePublishSendFailure  Code = "listing.publish.send_failure"
)

// New builds a coded error with optional key/value context.
func New(code Code, msg string, kv ...any) error {
	return oops.Code(string(code)).With(kv...).New(msg)
}

// Wrap attaches a code and message to err. A nil err stays nil.
func Wrap(err error, code Code, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(string(code)).With(kv...).Wrapf(err, "%s", msg)
}

// CodeOf extracts the code from an error chain, or "" for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch c := any(oopsErr.Code()).(type) {
	case Code:
		return c
	case string:
		return Code(c)
	case nil:
		return ""
	default:
		return Code(fmt.Sprint(c))
	}
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsValidation reports input rejected by a step's validation rule.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case CodeValidationInvalid, CodeAlbumEmpty, CodeAlbumFull:
		return true
	}
	return false
}

// IsIgnored reports an event that produces no transition: no matching row, or no session.
func IsIgnored(err error) bool {
	switch CodeOf(err) {
	case CodeTransitionIgnored, CodeSessionNotFound:
		return true
	}
	return false
}

// ErrNoSession is returned for events that require a session the user does not have.
var ErrNoSession = New(CodeSessionNotFound, "no active session")
