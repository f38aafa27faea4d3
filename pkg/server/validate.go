package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pixperk/escrowd/pkg/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fieldError struct {
	Field   string
	Message string
}

func (e fieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type validationErrors []fieldError

func (v validationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// checks request struct tags, failures map to InvalidArgument
type requestValidator struct {
	validate *validator.Validate
}

// parties to a ledger operation may not be the escrow account itself
func newRequestValidator(ledgerID types.Identity) *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notledger", func(fl validator.FieldLevel) bool {
		return fl.Field().String() != string(ledgerID)
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (v *requestValidator) check(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	out := make(validationErrors, 0, len(errs))
	for _, fe := range errs {
		msg := fe.Error()
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "min":
			msg = fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		case "hostname_port":
			msg = "must be host:port"
		case "notledger":
			msg = "must not be the escrow account"
		case "lte":
			msg = fmt.Sprintf("must be at most %s", fe.Param())
		}
		out = append(out, fieldError{Field: fe.Namespace(), Message: msg})
	}
	return status.Error(codes.InvalidArgument, out.Error())
}
