package handler

import (
	"MediaVault/internal/dto"
	"MediaVault/internal/task"
	"MediaVault/utils"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CreateImport queues a remote URL for import.
func CreateImport(c *gin.Context) {
	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	importTask, err := task.CreateImportTask(c.Request.Context(), currentUserID(c), req.URL, req.FileName)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "import task created", "task_id": importTask.ID})
}

// ListImports lists the caller's recent import tasks.
func ListImports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	tasks, err := task.ListImportTasks(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
