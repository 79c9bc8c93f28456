package handler

import (
	"MediaVault/internal/dto"
	"MediaVault/internal/service"
	"MediaVault/utils"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetQuota returns the caller's storage usage.
func GetQuota(c *gin.Context) {
	usage, err := service.CurrentUsage(c.Request.Context(), currentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, usage)
}

// SetQuota changes a user's byte limit.
func SetQuota(c *gin.Context) {
	var req dto.SetQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := service.SetLimit(c.Request.Context(), req.UserID, req.LimitBytes); err != nil {
		utils.Fail(c, err)
		return
	}
	usage, err := service.CurrentUsage(c.Request.Context(), req.UserID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, usage)
}

// ReconcileQuota compares a user's ledger with their assets; fix=true rewrites it.
func ReconcileQuota(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userID"), 10, 64)
	if err != nil || userID == 0 {
		utils.BadRequest(c, "invalid user id")
		return
	}
	fix, _ := strconv.ParseBool(c.Query("fix"))
	report, err := service.Reconcile(c.Request.Context(), userID, fix)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, report)
}
