package render

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9]{6,25}$`)
	roomNameRe = regexp.MustCompile(`^[a-zA-Z0-9 ]{6,100}$`)
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("username", validateUsername)
	_ = validate.RegisterValidation("userpassword", validateUserPassword)
	_ = validate.RegisterValidation("roomname", validateRoomName)
	_ = validate.RegisterValidation("roompassword", validateRoomPassword)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validationMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
	case "max":
		return fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
	case "uuid":
		return "Value must be a UUID"
	case "username":
		return "Username must be 6 to 25 latin letters or digits"
	case "userpassword":
		return "Password must be 8 to 72 characters with at least one digit, one lower case and one upper case letter"
	case "roomname":
		return "Chat room name must be 6 to 100 latin letters, digits or spaces"
	case "roompassword":
		return "Chat room password must be empty or 4 to 72 characters"
	default:
		return "Invalid value"
	}
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernameRe.MatchString(fl.Field().String())
}

// At least one digit, one lower and one upper case letter
func validateUserPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if n := utf8.RuneCountInString(password); n < 8 || n > 72 {
		return false
	}

	var digit, lower, upper bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	return digit && lower && upper
}

func validateRoomName(fl validator.FieldLevel) bool {
	return roomNameRe.MatchString(fl.Field().String())
}

// Empty password means the room is open
func validateRoomPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if password == "" {
		return true
	}
	n := utf8.RuneCountInString(password)
	return n >= 4 && n <= 72
}
