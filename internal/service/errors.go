// errors.go — ошибки сервисного слоя.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrUploadInProgress — у пользователя уже отслеживается задача загрузки.
	ErrUploadInProgress = errors.New("загрузка каталога уже выполняется")
)

// validate — общий валидатор форм. validator.Validate потокобезопасен
// и кэширует разобранные структуры.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct проверяет структуру по тегам validate и возвращает ошибку,
// совместимую с ErrValidation, со списком полей.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s (%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	return &ValidationError{Fields: fieldNames(fieldErrs), msg: strings.Join(parts, ", ")}
}

// ValidationError — список полей формы, не прошедших проверку.
type ValidationError struct {
	// Fields — имена полей структуры (Title, Barcode, ...)
	Fields []string
	msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, e.msg)
}

// Unwrap позволяет errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Has сообщает, что поле не прошло проверку.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

func fieldNames(errs validator.ValidationErrors) []string {
	names := make([]string, 0, len(errs))
	for _, fe := range errs {
		names = append(names, fe.Field())
	}
	return names
}
