package utils

import (
	"MediaVault/internal/apperr"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success writes a success JSON response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, gin.H{
		"code": 0,
		"msg":  "ok",
		"data": data,
	})
}

// Fail writes an error JSON response with the status mapped from err.
func Fail(c *gin.Context, err error) {
	status, code := apperr.Status(err)
	body := gin.H{
		"code":  -1,
		"error": code,
		"msg":   apperr.PublicMessage(err),
	}
	var partial *apperr.PartialFailureError
	if errors.As(err, &partial) && len(partial.Rejected) > 0 {
		body["rejected"] = partial.Rejected
	}
	var invalid *apperr.ValidationError
	if errors.As(err, &invalid) {
		body["rejected"] = invalid.Rejected
	}
	c.JSON(status, body)
}

// BadRequest writes a 400 for malformed input.
func BadRequest(c *gin.Context, msg string) {
	Fail(c, apperr.New(http.StatusBadRequest, "bad_request", errors.New(msg)))
}

// Abort writes err like Fail and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}
