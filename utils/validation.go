package utils

import (
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Quantities are validated as numbers so gte/gt tags apply to them
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		d, ok := v.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})
	RegisterCustomValidations()
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	return nil
}

// IsValidDate checks if a string is a calendar day
func IsValidDate(date string) bool {
	_, err := time.Parse(domain.DateLayout, date)
	return err == nil
}

// IsValidDeliveryStatus checks if a string names a delivery status
func IsValidDeliveryStatus(status string) bool {
	switch domain.DeliveryStatus(status) {
	case domain.DeliveryStatusPending, domain.DeliveryStatusCompleted, domain.DeliveryStatusCancelled:
		return true
	}
	return false
}

// RegisterCustomValidations registers custom validation functions
func RegisterCustomValidations() {
	validate.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		return IsValidDate(fl.Field().String())
	})
}
