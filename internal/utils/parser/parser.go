package parser

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
)

// ErrBadQuery marks a query value that does not fit its field.
var ErrBadQuery = errors.New("bad query parameter")

// ParseQuery binds query parameters into the struct pointed to by out using
// the 'query' tag. Absent parameters leave the field untouched, so defaults
// can be set before the call.
func ParseQuery(c *fiber.Ctx, out any) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return errors.New("output must be a pointer to a struct")
	}

	elem := val.Elem()
	typ := elem.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name := strings.Split(field.Tag.Get("query"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		if err := setField(elem.Field(i), raw); err != nil {
			return errors.Mark(errors.Wrapf(err, "%s must be %s", name, kindName(elem.Field(i))), ErrBadQuery)
		}
	}
	return nil
}

func kindName(field reflect.Value) string {
	if field.Kind() == reflect.Ptr {
		field = reflect.New(field.Type().Elem()).Elem()
	}
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.Bool:
		return "a boolean"
	default:
		return "a string"
	}
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		field = field.Elem()
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	}
	return nil
}
