package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"studyhub/internal/core/domain"
	"studyhub/pkg/validation"

	"github.com/go-playground/validator/v10"
)

// Inbound payloads. Field names follow the browser client.

type joinPayload struct {
	GroupID  domain.RoomID `json:"groupId" validate:"required,roomid"`
	UserID   domain.UserID `json:"userId" validate:"omitempty,userid"`
	UserName string        `json:"userName" validate:"omitempty,username"`
}

type leaveCallPayload struct {
	GroupID domain.RoomID `json:"groupId" validate:"required,roomid"`
}

type signalTarget struct {
	GroupID      domain.RoomID       `json:"groupId" validate:"required,roomid"`
	ReceiverID   domain.ConnectionID `json:"receiverId" validate:"required,max=64"`
	SenderName   string              `json:"senderName" validate:"omitempty,username"`
	ReceiverName string              `json:"receiverName" validate:"omitempty,username"`
}

type offerPayload struct {
	signalTarget
	Offer json.RawMessage `json:"offer" validate:"jsonvalue"`
}

type answerPayload struct {
	signalTarget
	Answer json.RawMessage `json:"answer" validate:"jsonvalue"`
}

type icePayload struct {
	signalTarget
	Candidate json.RawMessage `json:"candidate" validate:"jsonvalue"`
}

type joinSessionPayload struct {
	SessionID domain.SessionID `json:"sessionId" validate:"required,roomid"`
	UserID    domain.UserID    `json:"userId" validate:"omitempty,userid"`
	UserName  string           `json:"userName" validate:"omitempty,username"`
}

type sessionPayload struct {
	SessionID domain.SessionID `json:"sessionId" validate:"required,roomid"`
}

type chatGroupPayload struct {
	GroupID domain.RoomID `json:"groupId" validate:"required,roomid"`
}

// UnmarshalJSON also accepts a bare string group id, which older clients send.
func (p *chatGroupPayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return err
		}
		p.GroupID = domain.RoomID(id)
		return nil
	}
	type plain chatGroupPayload
	return json.Unmarshal(trimmed, (*plain)(p))
}

type typingPayload struct {
	GroupID  domain.RoomID `json:"groupId" validate:"required,roomid"`
	UserID   domain.UserID `json:"userId" validate:"omitempty,userid"`
	UserName string        `json:"userName" validate:"omitempty,username"`
}

type messagePayload struct {
	GroupID  domain.RoomID `json:"groupId" validate:"required,roomid"`
	Content  string        `json:"content" validate:"required,content"`
	UserID   domain.UserID `json:"userId" validate:"omitempty,userid"`
	UserName string        `json:"userName" validate:"omitempty,username"`
}

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
		return validation.ValidateRoomID(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return validation.ValidateUserID(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return validation.ValidateDisplayName(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("content", func(fl validator.FieldLevel) bool {
		return validation.ValidateMessageContent(fl.Field().String()) == nil
	})
	// jsonvalue requires a present, non-null JSON value.
	_ = v.RegisterValidation("jsonvalue", func(fl validator.FieldLevel) bool {
		raw, ok := fl.Field().Interface().(json.RawMessage)
		if !ok {
			return false
		}
		raw = bytes.TrimSpace(raw)
		return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
	})

	return v
}

// decodePayload unmarshals and validates an inbound payload, failing closed.
func decodePayload(v *validator.Validate, raw json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed payload")
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" || fe.Tag() == "jsonvalue" {
				return fmt.Errorf("%s is required", fe.Field())
			}
			return fmt.Errorf("%s is invalid", fe.Field())
		}
		return fmt.Errorf("invalid payload")
	}
	return nil
}
