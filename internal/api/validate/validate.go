package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string {
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates tag-annotated request DTOs and flattens the result into
// field errors suitable for the API envelope.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errs{{Field: "_", Msg: "invalid payload"}}
	}
	out := make(Errs, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ErrField{
			Field: strings.ToLower(fe.Field()),
			Msg:   "failed " + fe.Tag() + " validation",
		})
	}
	return out
}
