package server

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/harrisonrobin/taskpilot/pkg/assembler"
	"github.com/harrisonrobin/taskpilot/pkg/model"
)

var registerOnce sync.Once

// registerValidations adds the domain tags to gin's validator. Fields that
// accept the auto-detect sentinel let it through.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("category", validateCategory)
		_ = v.RegisterValidation("status", validateStatus)
		_ = v.RegisterValidation("isodate", validateISODate)
	})
}

func autoDetect(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), assembler.AutoDetect)
}

func validateCategory(fl validator.FieldLevel) bool {
	_, ok := model.ParseCategory(fl.Field().String())
	return ok
}

func validateStatus(fl validator.FieldLevel) bool {
	_, err := model.ParseStatus(fl.Field().String())
	return err == nil
}

func validateISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if autoDetect(s) {
		return true
	}
	_, ok := model.ParseDate(s)
	return ok
}
