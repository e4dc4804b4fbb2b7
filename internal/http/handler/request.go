package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

const maxFormMemory = 1 << 20

var errUnsupportedBody = errors.New("unsupported request body")

// decodeRequest accepts a JSON body or an HTML form post. Form fields are
// matched to dst by their json tag.
func decodeRequest(r *http.Request, dst any) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if ct == "multipart/form-data" {
			err = r.ParseMultipartForm(maxFormMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return fmt.Errorf("parse form: %w", err)
		}
		fields := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return err
		}
	case "", "application/json":
		if r.Body == nil || r.ContentLength == 0 {
			return nil
		}
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(dst); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	default:
		return errUnsupportedBody
	}
	trimFields(dst)
	return nil
}

// trimFields strips surrounding whitespace from string fields tagged
// mod:"trim" so validation sees the value the services will store.
// Passwords are never tagged.
func trimFields(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return
	}
	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.String || !f.CanSet() || t.Field(i).Tag.Get("mod") != "trim" {
			continue
		}
		f.SetString(strings.TrimSpace(f.String()))
	}
}

// validateRequest returns one message per failing field, or nil.
func validateRequest(data any) map[string]string {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; !seen {
				fields[fe.Field()] = fieldMessage(fe)
			}
		}
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "len":
		return fmt.Sprintf("Enter exactly %s characters.", fe.Param())
	case "number", "numeric":
		return "Enter digits only."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "eqfield":
		return "Passwords do not match."
	default:
		return fmt.Sprintf("Invalid %s field.", fe.Field())
	}
}

type registerRequest struct {
	Email           string `json:"email" mod:"trim" validate:"required,email,max=255"`
	FullName        string `json:"full_name" mod:"trim" validate:"required,max=255"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type verifyOTPRequest struct {
	OTP string `json:"otp" mod:"trim" validate:"required,len=6,number"`
}

type resendOTPRequest struct {
	Email string `json:"email" mod:"trim" validate:"omitempty,email"`
}

type loginRequest struct {
	Username string `json:"username" mod:"trim" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" mod:"trim" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token           string `json:"token" mod:"trim" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}
