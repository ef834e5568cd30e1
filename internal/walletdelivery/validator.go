package walletdelivery

import (
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

// ValidMoney validates that the amount is positive with at most two decimals.
var ValidMoney validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	m, err := moneypkg.Parse(s)

	return err == nil && m.IsPositive()
}

// moneyValue lets tags on moneypkg.Money fields validate its string form.
func moneyValue(field reflect.Value) interface{} {
	if m, ok := field.Interface().(moneypkg.Money); ok {
		return m.String()
	}

	return nil
}

// RegisterValidators registers the "money" tag on v.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterCustomTypeFunc(moneyValue, moneypkg.Money{})

	return v.RegisterValidation("money", ValidMoney)
}
