package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sitewerks/spectrum-sync/internal/models"
	"github.com/sitewerks/spectrum-sync/internal/services"
	"github.com/sitewerks/spectrum-sync/internal/types"
	"github.com/sitewerks/spectrum-sync/internal/utils"
	"gorm.io/gorm"
)

// SyncHandler handles sync trigger and run ledger routes
type SyncHandler struct {
	DB   *gorm.DB
	Sync *services.SyncService
}

// TriggerSyncRequest is the optional scope override body for a manual sync.
// Divisions and statuses accept either a single value or a list; pageCap
// accepts a number or a numeric string.
type TriggerSyncRequest struct {
	CompanyCode string                 `json:"companyCode"`
	Divisions   types.FlexList[string] `json:"divisions"`
	Statuses    types.FlexList[string] `json:"statuses"`
	JobNumber   string                 `json:"jobNumber"`
	CostType    string                 `json:"costType"`
	PageCap     types.FlexUint64       `json:"pageCap"`
}

// TriggerSync handles POST /api/sync
// @Summary Trigger a sync run
// @Description Start a full or scoped sync run in the background. Returns 409 when a run is already in progress.
// @Tags Sync
// @Accept json
// @Produce json
// @Param body body TriggerSyncRequest false "Optional scope overrides"
// @Success 202 {object} utils.AcceptedResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /sync [post]
func (h *SyncHandler) TriggerSync(c *fiber.Ctx) error {
	var req TriggerSyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "triggerSync")
		}
	}

	run, err := h.Sync.Start(services.SyncOptions{
		Trigger:   models.TriggerManual,
		Company:   strings.TrimSpace(req.CompanyCode),
		Divisions: req.Divisions.Slice(),
		Statuses:  req.Statuses.Slice(),
		JobNumber: strings.TrimSpace(req.JobNumber),
		CostType:  strings.TrimSpace(req.CostType),
		PageCap:   int(req.PageCap),
	})
	if err != nil {
		if errors.Is(err, services.ErrSyncInFlight) {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict, "triggerSync")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "triggerSync")
	}

	return utils.AcceptedResponse(c, run.ExternalID)
}

// ListRuns handles GET /api/sync/runs
// @Summary List recent sync runs
// @Description Get the most recent sync runs, newest first
// @Tags Sync
// @Produce json
// @Param limit query int false "Maximum number of runs to return (default 50, max 200)"
// @Success 200 {array} models.SyncRun
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /sync/runs [get]
func (h *SyncHandler) ListRuns(c *fiber.Ctx) error {
	runs, err := services.RecentRuns(h.DB, c.QueryInt("limit"))
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listRuns")
	}
	return c.Status(fiber.StatusOK).JSON(runs)
}

// GetRun handles GET /api/sync/runs/:id
// @Summary Get a sync run
// @Description Get one sync run by its external id
// @Tags Sync
// @Produce json
// @Param id path string true "Run external ID"
// @Success 200 {object} models.SyncRun
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /sync/runs/{id} [get]
func (h *SyncHandler) GetRun(c *fiber.Ctx) error {
	run, err := services.GetRun(h.DB, c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundResponse(c, "Sync run not found")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getRun")
	}
	return c.Status(fiber.StatusOK).JSON(run)
}
