package cognito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wulf-data-engineering/wulfpack"
	"github.com/wulf-data-engineering/wulfpack/protocols"
	"github.com/wulf-data-engineering/wulfpack/users"
	"github.com/zoobzio/capitan"
)

// SignUpDataKey is the client metadata entry carrying the sign up form as JSON.
const SignUpDataKey = "sign_up_data"

// ErrMissingName is returned when sign up data lacks the first or last name.
var ErrMissingName = errors.New("cognito: missing firstName or lastName in sign_up_data")

// UserInserter stores newly confirmed users.
type UserInserter interface {
	Insert(ctx context.Context, data users.UserData) error
}

// Handler reacts to user pool lifecycle events.
//
// PostConfirmation with sign up data stores the user. PreSignup confirms the
// user right away when auto confirmation is enabled, unless the local part of
// the email ends in "confirm". Every other event is returned unchanged.
type Handler struct {
	users       UserInserter
	autoConfirm bool
	capitan     *capitan.Capitan
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAutoConfirm enables auto confirmation of new users, meant for development pools.
func WithAutoConfirm(enabled bool) HandlerOption {
	return func(h *Handler) {
		h.autoConfirm = enabled
	}
}

// WithHandlerCapitan sets a custom Capitan instance for error signals.
func WithHandlerCapitan(c *capitan.Capitan) HandlerOption {
	return func(h *Handler) {
		h.capitan = c
	}
}

// NewHandler creates a Handler storing users with store.
func NewHandler(store UserInserter, opts ...HandlerOption) *Handler {
	h := &Handler{users: store}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one event and returns the event to hand back to Cognito.
func (h *Handler) Handle(ctx context.Context, env Envelope) (Envelope, error) {
	switch event := env.Event.(type) {
	case PreSignup:
		if h.autoConfirm {
			env.Event = autoConfirm(event)
		}
	case PostConfirmation:
		if err := h.postConfirmation(ctx, event); err != nil {
			h.emitError(ctx, event.TriggerSource, err)
			return env, err
		}
	}
	return env, nil
}

func (h *Handler) postConfirmation(ctx context.Context, event PostConfirmation) error {
	data, ok := SignUpDataFrom(event.Request.ClientMetadata)
	if !ok {
		return nil
	}
	if data.FirstName == "" || data.LastName == "" {
		return ErrMissingName
	}

	user := users.UserData{
		Username:  event.Request.UserAttributes["sub"],
		Email:     event.Request.UserAttributes["email"],
		FirstName: data.FirstName,
		LastName:  data.LastName,
	}
	if err := h.users.Insert(ctx, user); err != nil {
		return fmt.Errorf("cognito: insert user %s: %w", user.Username, err)
	}
	return nil
}

// SignUpDataFrom parses the sign up data of client metadata. It reports false
// when the entry is missing or is not valid JSON.
func SignUpDataFrom(clientMetadata map[string]string) (protocols.SignUpData, bool) {
	var data protocols.SignUpData
	raw, ok := clientMetadata[SignUpDataKey]
	if !ok {
		return data, false
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return data, false
	}
	return data, true
}

func autoConfirm(event PreSignup) PreSignup {
	email := event.Request.UserAttributes["email"]
	local, _, _ := strings.Cut(email, "@")
	if strings.HasSuffix(local, "confirm") {
		return event
	}
	event.Response.AutoConfirmUser = true
	if email != "" {
		event.Response.AutoVerifyEmail = true
	}
	return event
}

// emitError emits an error event to wulfpack.ErrorSignal.
func (h *Handler) emitError(ctx context.Context, triggerSource string, err error) {
	failure := wulfpack.Error{
		Operation: "cognito",
		Endpoint:  triggerSource,
		Err:       err.Error(),
	}
	if h.capitan != nil {
		h.capitan.Emit(ctx, wulfpack.ErrorSignal, wulfpack.ErrorKey.Field(failure))
	} else {
		capitan.Emit(ctx, wulfpack.ErrorSignal, wulfpack.ErrorKey.Field(failure))
	}
}
