package apistub

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// echoValidator plugs validator/v10 into echo.Context.Validate. Failures
// become a 422 with one {"msg": ...} item per field.
type echoValidator struct {
	v *validator.Validate
}

func newEchoValidator() *echoValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	return &echoValidator{v: v}
}

func (ev *echoValidator) Validate(i any) error {
	err := ev.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %v", err))
	}
	items := make([]detailItem, 0, len(verrs))
	for _, fe := range verrs {
		items = append(items, detailItem{
			Loc: []string{"body", fe.Field()},
			Msg: fieldMessage(fe),
		})
	}
	return &validationFailure{items: items}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: field required", fe.Field())
	case "email":
		return fmt.Sprintf("%s: value is not a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s: ensure this value has at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s: invalid value", fe.Field())
	}
}

type detailItem struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
}

type validationFailure struct {
	items []detailItem
}

func (v *validationFailure) Error() string {
	msgs := make([]string, len(v.items))
	for i, it := range v.items {
		msgs[i] = it.Msg
	}
	return strings.Join(msgs, "; ")
}
