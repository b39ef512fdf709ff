package graph

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/hanpama/graphpress/internal/errs"
)

type UserCreateInput struct {
	Name     string `mapstructure:"name" validate:"required,max=150"`
	Email    string `mapstructure:"email" validate:"required,email,max=100"`
	Password string `mapstructure:"password" validate:"required,max=72"`
}

type UserUpdateInput struct {
	Name  *string `mapstructure:"name" validate:"omitempty,min=1,max=150"`
	Email *string `mapstructure:"email" validate:"omitempty,email,max=100"`
	Photo *string `mapstructure:"photo"`
}

func (in UserUpdateInput) values() map[string]any {
	v := make(map[string]any)
	if in.Name != nil {
		v["name"] = *in.Name
	}
	if in.Email != nil {
		v["email"] = *in.Email
	}
	if in.Photo != nil {
		v["photo"] = *in.Photo
	}
	return v
}

type UserUpdatePasswordInput struct {
	Password string `mapstructure:"password" validate:"required,max=72"`
}

type PostInput struct {
	Title   string `mapstructure:"title" validate:"required,max=255"`
	Content string `mapstructure:"content" validate:"required"`
	Photo   string `mapstructure:"photo" validate:"required"`
}

func (in PostInput) values() map[string]any {
	return map[string]any{"title": in.Title, "content": in.Content, "photo": in.Photo}
}

type CommentInput struct {
	Comment string `mapstructure:"comment" validate:"required"`
	Post    string `mapstructure:"post" validate:"required,numeric"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	return v
}

// decodeInput decodes a coerced GraphQL input object into out and validates
// it. Both failures are ValidationFailure errors.
func decodeInput(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: out, ErrorUnused: true})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return errs.Wrap(errs.ValidationFailure, err, "invalid input")
	}
	if err := validate.Struct(out); err != nil {
		return errs.Validationf("invalid input: %s", validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	ves, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, len(ves))
	for i, fe := range ves {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}
