package handlers

import (
	"salonhub/internal/engine"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 注册自定义校验规则
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// salonrole: 租户内角色的封闭集合
		_ = v.RegisterValidation("salonrole", func(fl validator.FieldLevel) bool {
			return engine.Role(fl.Field().String()).Valid()
		})
		// salonmodule: 模块目录内的键
		_ = v.RegisterValidation("salonmodule", func(fl validator.FieldLevel) bool {
			module := engine.Module(fl.Field().String())
			for _, m := range engine.Catalog() {
				if m == module {
					return true
				}
			}
			return false
		})
	}
}
