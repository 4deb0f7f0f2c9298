package protocols

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Empty is the request message of endpoints that take no input.
type Empty struct{}

// MarshalBinary returns no bytes.
func (Empty) MarshalBinary() ([]byte, error) {
	return nil, nil
}

// UnmarshalBinary validates the framing and ignores every field.
func (e *Empty) UnmarshalBinary(b []byte) error {
	return walk(b, skipField)
}

// PasswordPolicy describes the password rules of the user pool.
//
//	message PasswordPolicy {
//	  int32 minimum_length    = 1;
//	  bool  require_uppercase = 2;
//	  bool  require_lowercase = 3;
//	  bool  require_numbers   = 4;
//	  bool  require_symbols   = 5;
//	}
type PasswordPolicy struct {
	MinimumLength    int32 `json:"minimumLength"`
	RequireUppercase bool  `json:"requireUppercase"`
	RequireLowercase bool  `json:"requireLowercase"`
	RequireNumbers   bool  `json:"requireNumbers"`
	RequireSymbols   bool  `json:"requireSymbols"`
}

// MarshalBinary encodes the policy in protobuf wire format.
func (p PasswordPolicy) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendInt32(b, 1, p.MinimumLength)
	b = appendBool(b, 2, p.RequireUppercase)
	b = appendBool(b, 3, p.RequireLowercase)
	b = appendBool(b, 4, p.RequireNumbers)
	b = appendBool(b, 5, p.RequireSymbols)
	return b, nil
}

// UnmarshalBinary decodes the policy from protobuf wire format.
func (p *PasswordPolicy) UnmarshalBinary(b []byte) error {
	var out PasswordPolicy
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var target *bool
		switch num {
		case 1:
			v, n, err := consumeVarint(num, typ, b)
			if err != nil {
				return 0, err
			}
			out.MinimumLength = int32(v)
			return n, nil
		case 2:
			target = &out.RequireUppercase
		case 3:
			target = &out.RequireLowercase
		case 4:
			target = &out.RequireNumbers
		case 5:
			target = &out.RequireSymbols
		default:
			return skipField(num, typ, b)
		}
		v, n, err := consumeVarint(num, typ, b)
		if err != nil {
			return 0, err
		}
		*target = protowire.DecodeBool(v)
		return n, nil
	})
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// SignUpData is the profile a user enters while signing up. It travels to the
// Cognito triggers as JSON in the "sign_up_data" client metadata entry.
//
//	message SignUpData {
//	  string first_name = 1;
//	  string last_name  = 2;
//	}
type SignUpData struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// MarshalBinary encodes the data in protobuf wire format.
func (s SignUpData) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, s.FirstName)
	b = appendString(b, 2, s.LastName)
	return b, nil
}

// UnmarshalBinary decodes the data from protobuf wire format.
func (s *SignUpData) UnmarshalBinary(b []byte) error {
	var out SignUpData
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(num, typ, b)
			out.FirstName = v
			return n, err
		case 2:
			v, n, err := consumeString(num, typ, b)
			out.LastName = v
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
	if err != nil {
		return err
	}
	*s = out
	return nil
}
