package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxRequestBodyBytes caps JSON request bodies.
const MaxRequestBodyBytes = 1 << 20

// ErrEmptyBody is returned by DecodeJSON when the request has no body.
var ErrEmptyBody = errors.New("request body is empty")

// validate reports field names by their JSON tag.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes a single JSON document from the request body into v.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: unexpected data after the JSON object")
	}
	return nil
}

// ValidateRequest validates the given struct using its validate tags, or its
// own Validate method when it has one.
func ValidateRequest(v interface{}) error {
	if validatable, ok := v.(interface{ Validate() error }); ok {
		return validatable.Validate()
	}
	return validate.Struct(v)
}
