package handler

import (
	"MediaVault/internal/apperr"
	"MediaVault/internal/dto"
	"MediaVault/internal/service"
	"MediaVault/model"
	"MediaVault/utils"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Login authenticates a user and returns a token.
func Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := service.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrBadCredentials) {
		utils.Fail(c, apperr.New(http.StatusUnauthorized, "bad_credentials", err))
		return
	}
	if err != nil {
		utils.Fail(c, err)
		return
	}
	token, err := utils.GenerateToken(user.ID, user.UserName)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"token":   token,
		"user":    user,
	})
}

// Register creates an account with its storage ledger and system folders.
func Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.FirstPassword != req.LastPassword {
		utils.BadRequest(c, "passwords do not match")
		return
	}
	user := model.User{
		UserName: req.Username,
		Email:    req.Email,
		Password: req.FirstPassword,
	}
	if err := service.CreateUser(c.Request.Context(), &user); err != nil {
		utils.Fail(c, err)
		return
	}
	token, err := utils.GenerateToken(user.ID, user.UserName)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"token":   token,
		"user":    user,
	})
}
