package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sitewerks/spectrum-sync/internal/models"
	"github.com/sitewerks/spectrum-sync/internal/utils"
	"gorm.io/gorm"
)

// ProjectHandler handles read routes over the projected project records
type ProjectHandler struct {
	DB *gorm.DB
}

// ListProjects handles GET /api/projects
// @Summary List projects
// @Description List projected projects, optionally filtered by status or branch division code
// @Tags Projects
// @Produce json
// @Param status query string false "Project status filter (ACTIVE, INACTIVE, COMPLETED, PENDING)"
// @Param division query string false "Branch division code filter"
// @Success 200 {array} models.Project
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /projects [get]
func (h *ProjectHandler) ListProjects(c *fiber.Ctx) error {
	query := h.DB.Model(&models.Project{}).Order("job_number")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if division := c.Query("division"); division != "" {
		query = query.Joins("JOIN branches ON branches.id = projects.branch_id").
			Where("branches.division_code = ?", division)
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listProjects")
	}
	return c.Status(fiber.StatusOK).JSON(projects)
}

// GetProject handles GET /api/projects/:jobNumber
// @Summary Get a project
// @Description Get one projected project by its source job number
// @Tags Projects
// @Produce json
// @Param jobNumber path string true "Source system job number"
// @Success 200 {object} models.Project
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /projects/{jobNumber} [get]
func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	var project models.Project
	err := h.DB.Where("job_number = ?", c.Params("jobNumber")).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundResponse(c, "Project not found")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getProject")
	}
	return c.Status(fiber.StatusOK).JSON(project)
}
