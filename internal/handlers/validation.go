package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tenantcrm/pkg/response"
	appValidator "github.com/charlesng35/tenantcrm/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.ValidationFailed(c, "Invalid JSON payload", nil)
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		var failures appValidator.ValidationErrors
		if errors.As(err, &failures) {
			response.ValidationFailed(c, "", failures.Fields())
			return false
		}
		response.ValidationFailed(c, "", nil)
		return false
	}

	return true
}
