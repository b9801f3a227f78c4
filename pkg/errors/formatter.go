package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationErrorResponse is one entry of the per-field error list returned
// to the registration form. Messages are in Italian, the language of the page.
type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "Campo obbligatorio"
	case "email":
		return "Indirizzo email non valido"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Massimo %s caratteri", fe.Param())
		}
		return fmt.Sprintf("Il valore massimo è %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Minimo %s caratteri", fe.Param())
		}
		return fmt.Sprintf("Il valore minimo è %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Il valore minimo è %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Il valore massimo è %s", fe.Param())
	case "oneof":
		return "Valore non ammesso: scegli tra " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "timeslot":
		return "Fascia oraria non disponibile"
	case "eq":
		return "Valore non ammesso"
	default:
		return "Valore non valido"
	}
}

// jsonFieldName maps a Go struct field to the name the client sent. Fields
// without a json tag keep their Go name.
func jsonFieldName(structType reflect.Type, fieldName string) string {
	if structType == nil {
		return fieldName
	}

	field, found := structType.FieldByName(fieldName)
	if !found {
		return fieldName
	}

	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fieldName
	}
	return name
}

func structTypeOf(model any) reflect.Type {
	if model == nil {
		return nil
	}

	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// FormatValidationErrors turns binding and validation failures into a list of
// field errors keyed by JSON name. Errors it does not recognise yield an
// empty list so the caller can fall back to a generic message.
func FormatValidationErrors(err error, model any) []ValidationErrorResponse {
	if err == nil {
		return nil
	}

	structType := structTypeOf(model)

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = jsonFieldName(structType, typeErr.Struct)
		}
		return []ValidationErrorResponse{{
			Field:   field,
			Message: fmt.Sprintf("Tipo non valido: atteso %s", typeErr.Type),
		}}
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	result := make([]ValidationErrorResponse, 0, len(validationErrors))
	for _, fe := range validationErrors {
		result = append(result, ValidationErrorResponse{
			Field:   jsonFieldName(structType, fe.StructField()),
			Message: messageFor(fe),
		})
	}
	return result
}
