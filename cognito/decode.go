package cognito

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidJSON is returned by Decode when the input is not a JSON value at all.
var ErrInvalidJSON = errors.New("cognito: event is not valid JSON")

// decodeFunc turns a raw event into one typed variant.
type decodeFunc func(raw []byte) (Event, error)

// rule maps trigger sources to a variant. Decoders are tried in order until
// one succeeds.
type rule struct {
	name     string
	match    func(triggerSource string) bool
	decoders []decodeFunc
}

func exact(s string) func(string) bool {
	return func(triggerSource string) bool { return triggerSource == s }
}

func prefix(p string) func(string) bool {
	return func(triggerSource string) bool { return strings.HasPrefix(triggerSource, p) }
}

// lenient decodes raw into T, ignoring fields T does not know.
func lenient[T Event]() decodeFunc {
	return func(raw []byte) (Event, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// strict decodes raw into T and fails on fields T does not know. Versioned
// shapes sharing one trigger source are told apart this way.
func strict[T Event]() decodeFunc {
	return func(raw []byte) (Event, error) {
		var v T
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// rules is evaluated top to bottom; the first matching rule decides the variant.
var rules = []rule{
	{name: "PreSignUp_*", match: prefix("PreSignUp_"), decoders: []decodeFunc{lenient[PreSignup]()}},
	{name: "PreAuthentication_Authentication", match: exact("PreAuthentication_Authentication"), decoders: []decodeFunc{lenient[PreAuthentication]()}},
	{name: "PostConfirmation_*", match: prefix("PostConfirmation_"), decoders: []decodeFunc{lenient[PostConfirmation]()}},
	{name: "PreTokenGeneration_Authentication", match: exact("PreTokenGeneration_Authentication"), decoders: []decodeFunc{strict[PreTokenGenV2](), strict[PreTokenGen]()}},
	{name: "PostAuthentication_Authentication", match: exact("PostAuthentication_Authentication"), decoders: []decodeFunc{lenient[PostAuthentication]()}},
	{name: "MigrateUser_Authentication", match: exact("MigrateUser_Authentication"), decoders: []decodeFunc{lenient[MigrateUser]()}},
	{name: "DefineAuthChallenge_Authentication", match: exact("DefineAuthChallenge_Authentication"), decoders: []decodeFunc{lenient[DefineAuthChallenge]()}},
	{name: "CreateAuthChallenge_Authentication", match: exact("CreateAuthChallenge_Authentication"), decoders: []decodeFunc{lenient[CreateAuthChallenge]()}},
	{name: "VerifyAuthChallengeResponse_Authentication", match: exact("VerifyAuthChallengeResponse_Authentication"), decoders: []decodeFunc{lenient[VerifyAuthChallenge]()}},
	{name: "Authentication_ChallengeResult", match: exact("Authentication_ChallengeResult"), decoders: []decodeFunc{lenient[ChallengeResult]()}},
	{name: "CustomMessage_*", match: prefix("CustomMessage_"), decoders: []decodeFunc{lenient[CustomMessage]()}},
}

// triggerSourceOf extracts the triggerSource string of a raw event.
// Anything other than a JSON object with a string triggerSource yields "".
func triggerSourceOf(raw []byte) string {
	var header struct {
		TriggerSource json.RawMessage `json:"triggerSource"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return ""
	}
	var triggerSource string
	if err := json.Unmarshal(header.TriggerSource, &triggerSource); err != nil {
		return ""
	}
	return triggerSource
}

// Decode classifies raw. The returned event is never nil: when no rule
// matches, or the matching rule cannot decode raw, it is an Unknown holding a
// copy of raw. The error reports why a matching rule failed, or that raw is
// not JSON; a trigger source no rule knows is not an error.
func Decode(raw []byte) (Event, error) {
	unknown := Unknown{Raw: append(json.RawMessage(nil), raw...)}
	if !json.Valid(raw) {
		return unknown, ErrInvalidJSON
	}

	triggerSource := triggerSourceOf(raw)
	for _, r := range rules {
		if !r.match(triggerSource) {
			continue
		}
		var err error
		for _, decode := range r.decoders {
			var event Event
			if event, err = decode(raw); err == nil {
				return event, nil
			}
		}
		return unknown, fmt.Errorf("cognito: decode %s as %s: %w", triggerSource, r.name, err)
	}
	return unknown, nil
}

// Classify is Decode without the error. It never fails.
func Classify(raw []byte) Event {
	event, _ := Decode(raw)
	return event
}

// Envelope is the wrapping value a Lambda handler receives and returns.
// It implements json.Unmarshaler and json.Marshaler so the runtime can decode
// the trigger payload directly into it.
type Envelope struct {
	Event Event
}

// UnmarshalJSON classifies data. It fails only when data is not valid JSON.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	event, err := Decode(data)
	if errors.Is(err, ErrInvalidJSON) {
		return err
	}
	e.Event = event
	return nil
}

// MarshalJSON encodes the typed variant, or the stored value of Unknown.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch v := e.Event.(type) {
	case nil:
		return []byte("null"), nil
	case Unknown:
		return v.MarshalJSON()
	default:
		return json.Marshal(v)
	}
}

// Kind returns the kind of the wrapped event.
func (e Envelope) Kind() Kind {
	if e.Event == nil {
		return KindUnknown
	}
	return e.Event.Kind()
}
