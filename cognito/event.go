// Package cognito classifies Cognito user pool lifecycle events.
//
// Lambda triggers attached to a user pool all receive the same kind of JSON
// object; the triggerSource field tells which lifecycle stage produced it.
// Classify turns such an object into one of the typed variants below, or into
// Unknown when no variant fits. Unknown keeps the original JSON verbatim so a
// handler can return events it does not understand without losing anything.
package cognito

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
)

// Kind names a variant.
type Kind string

// Variant kinds.
const (
	KindPreSignup           Kind = "PreSignup"
	KindPreAuthentication   Kind = "PreAuthentication"
	KindPostConfirmation    Kind = "PostConfirmation"
	KindPreTokenGen         Kind = "PreTokenGen"
	KindPreTokenGenV2       Kind = "PreTokenGenV2"
	KindPostAuthentication  Kind = "PostAuthentication"
	KindMigrateUser         Kind = "MigrateUser"
	KindChallengeResult     Kind = "ChallengeResult"
	KindDefineAuthChallenge Kind = "DefineAuthChallenge"
	KindCreateAuthChallenge Kind = "CreateAuthChallenge"
	KindVerifyAuthChallenge Kind = "VerifyAuthChallenge"
	KindCustomMessage       Kind = "CustomMessage"
	KindUnknown             Kind = "Unknown"
)

// Event is one classified lifecycle event.
type Event interface {
	Kind() Kind
}

// PreSignup is sent before a user is registered.
type PreSignup events.CognitoEventUserPoolsPreSignup

// PreAuthentication is sent before a user signs in.
type PreAuthentication events.CognitoEventUserPoolsPreAuthentication

// PostConfirmation is sent after a user confirmed the account or a forgotten password.
type PostConfirmation events.CognitoEventUserPoolsPostConfirmation

// PreTokenGen is the version 1 token generation event.
type PreTokenGen events.CognitoEventUserPoolsPreTokenGen

// PreTokenGenV2 is the token generation event of the advanced security feature
// plan, which can also customise access tokens and scopes.
type PreTokenGenV2 events.CognitoEventUserPoolsPreTokenGenV2

// PostAuthentication is sent after a user signed in.
type PostAuthentication events.CognitoEventUserPoolsPostAuthentication

// MigrateUser is sent when an unknown user signs in or resets the password.
type MigrateUser events.CognitoEventUserPoolsMigrateUser

// ChallengeResult is one entry of a custom authentication session.
type ChallengeResult events.CognitoEventUserPoolsChallengeResult

// DefineAuthChallenge decides the next step of a custom authentication flow.
type DefineAuthChallenge events.CognitoEventUserPoolsDefineAuthChallenge

// CreateAuthChallenge creates a custom authentication challenge.
type CreateAuthChallenge events.CognitoEventUserPoolsCreateAuthChallenge

// VerifyAuthChallenge checks the answer to a custom authentication challenge.
type VerifyAuthChallenge events.CognitoEventUserPoolsVerifyAuthChallenge

// CustomMessage lets the trigger rewrite email and SMS messages.
type CustomMessage events.CognitoEventUserPoolsCustomMessage

func (PreSignup) Kind() Kind           { return KindPreSignup }
func (PreAuthentication) Kind() Kind   { return KindPreAuthentication }
func (PostConfirmation) Kind() Kind    { return KindPostConfirmation }
func (PreTokenGen) Kind() Kind         { return KindPreTokenGen }
func (PreTokenGenV2) Kind() Kind       { return KindPreTokenGenV2 }
func (PostAuthentication) Kind() Kind  { return KindPostAuthentication }
func (MigrateUser) Kind() Kind         { return KindMigrateUser }
func (ChallengeResult) Kind() Kind     { return KindChallengeResult }
func (DefineAuthChallenge) Kind() Kind { return KindDefineAuthChallenge }
func (CreateAuthChallenge) Kind() Kind { return KindCreateAuthChallenge }
func (VerifyAuthChallenge) Kind() Kind { return KindVerifyAuthChallenge }
func (CustomMessage) Kind() Kind       { return KindCustomMessage }

// Unknown holds an event no variant matched, exactly as it was received.
type Unknown struct {
	Raw json.RawMessage
}

// Kind returns KindUnknown.
func (Unknown) Kind() Kind { return KindUnknown }

// MarshalJSON returns the stored value unchanged.
func (u Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

// TriggerSource returns the trigger source carried by e, or "" when the
// variant has no header.
func TriggerSource(e Event) string {
	switch v := e.(type) {
	case PreSignup:
		return v.TriggerSource
	case PreAuthentication:
		return v.TriggerSource
	case PostConfirmation:
		return v.TriggerSource
	case PreTokenGen:
		return v.TriggerSource
	case PreTokenGenV2:
		return v.TriggerSource
	case PostAuthentication:
		return v.TriggerSource
	case MigrateUser:
		return v.TriggerSource
	case DefineAuthChallenge:
		return v.TriggerSource
	case CreateAuthChallenge:
		return v.TriggerSource
	case VerifyAuthChallenge:
		return v.TriggerSource
	case CustomMessage:
		return v.TriggerSource
	case Unknown:
		return triggerSourceOf(v.Raw)
	default:
		return ""
	}
}
