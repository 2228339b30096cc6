// Package validation はフィールド単位の入力検証結果を表現します。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid はすべての検証エラーがラップする番兵エラーです。
var ErrInvalid = errors.New("validation failed")

// FieldError は単一フィールドの検証失敗を表します。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Field は FieldError を生成します。
func Field(field, message string) FieldError {
	return FieldError{Field: field, Message: message}
}

// Error は一つ以上のフィールド検証失敗をまとめたエラーです。
type Error struct {
	Fields []FieldError
}

// New は Error を生成します。
func New(fields ...FieldError) *Error {
	return &Error{Fields: fields}
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalid.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap により errors.Is(err, ErrInvalid) が成立します。
func (e *Error) Unwrap() error {
	return ErrInvalid
}

// Has は指定フィールドの失敗が含まれるかを返します。
func (e *Error) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Rule は独自の文字列検証タグです。
type Rule struct {
	Tag     string
	Message string
	Check   func(string) bool
}

// Validator は go-playground/validator を包み、失敗を Error に変換します。
type Validator struct {
	v        *validator.Validate
	messages map[string]string
}

// NewValidator は json タグをフィールド名として扱う Validator を生成します。
func NewValidator(rules ...Rule) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	messages := make(map[string]string, len(rules))
	for _, rule := range rules {
		check := rule.Check
		if err := v.RegisterValidation(rule.Tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("validation: register rule %q: %v", rule.Tag, err))
		}
		messages[rule.Tag] = rule.Message
	}

	return &Validator{v: v, messages: messages}
}

// Struct は構造体タグに従って検証し、失敗時は *Error を返します。
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation: %w", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, Field(fe.Field(), val.message(fe)))
	}
	return New(fields...)
}

func (val *Validator) message(fe validator.FieldError) string {
	if msg, ok := val.messages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isNumeric(fe.Kind()) {
			return "must be greater than or equal to " + fe.Param()
		}
		return "must be at least " + fe.Param() + " characters"
	case "max":
		if isNumeric(fe.Kind()) {
			return "must be less than or equal to " + fe.Param()
		}
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	default:
		return "is invalid"
	}
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
