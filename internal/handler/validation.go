package handler

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/inkwell/internal/db"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的 validator 注册自定义规则，可重复调用。
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		err = engine.RegisterValidation("inkwell_role", validateRole)
	})
	return err
}

func validateRole(fl validator.FieldLevel) bool {
	return db.Role(fl.Field().String()).Valid()
}
