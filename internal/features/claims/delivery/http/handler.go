package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/soccervortex/skinvault-backend/internal/common/config"
	apperrors "github.com/soccervortex/skinvault-backend/internal/common/errors"
	"github.com/soccervortex/skinvault-backend/internal/common/logger"
	"github.com/soccervortex/skinvault-backend/internal/common/middleware"
	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
	claimservice "github.com/soccervortex/skinvault-backend/internal/features/claims/service"
)

type ClaimHandler struct {
	service claimservice.ClaimService
	sweeper *claimservice.RerollSweeper
	config  *config.Config
	log     zerolog.Logger
}

func NewClaimHandler(svc claimservice.ClaimService, sweeper *claimservice.RerollSweeper, cfg *config.Config) *ClaimHandler {
	return &ClaimHandler{
		service: svc,
		sweeper: sweeper,
		config:  cfg,
		log:     logger.With("claims_http"),
	}
}

func (h *ClaimHandler) RegisterRoutes(api *gin.RouterGroup) {
	giveaways := api.Group("/giveaways")
	{
		giveaways.POST("/:id/claim", middleware.RequireAuth(), h.claim)
		giveaways.POST("/:id/manual-claim", middleware.RequireAuth(), h.manualClaim)
		giveaways.GET("/:id/winners", middleware.RequireAuth(), h.getWinners)
		giveaways.POST("/:id/fulfillment", middleware.RequireSecret(h.config.Claims.CronSecret), h.reportFulfillment)
		giveaways.POST("/:id/manual-claims/:steamId/status", middleware.RequireStaff(h.config.Claims.StaffSteamIDs), h.updateManualClaimStatus)
	}
}

// RegisterCron mounts the sweep trigger outside the versioned API group, the
// way the platform scheduler calls it.
func (h *ClaimHandler) RegisterCron(router *gin.Engine) {
	router.GET("/cron/giveaway-claims", middleware.RequireSecret(h.config.Claims.CronSecret), h.sweep)
}

func (h *ClaimHandler) claim(c *gin.Context) {
	resp, err := h.service.Claim(c.Request.Context(), c.Param("id"), middleware.GetSteamID(c))
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClaimHandler) manualClaim(c *gin.Context) {
	var input claimservice.ManualClaimInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.RespondError(c, h.log, apperrors.NewValidationError("body", err.Error()))
		return
	}

	resp, err := h.service.ManualClaim(c.Request.Context(), c.Param("id"), middleware.GetSteamID(c), &input)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClaimHandler) getWinners(c *gin.Context) {
	winners, err := h.service.GetWinners(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winners": winners})
}

type fulfillmentRequest struct {
	SteamID string `json:"steamId" binding:"required"`
	Outcome string `json:"outcome" binding:"required"`
}

func (h *ClaimHandler) reportFulfillment(c *gin.Context) {
	var req fulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, h.log, apperrors.NewValidationError("body", err.Error()))
		return
	}

	err := h.service.ReportFulfillment(c.Request.Context(), c.Param("id"), req.SteamID, claimservice.FulfillmentOutcome(req.Outcome))
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type manualStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ClaimHandler) updateManualClaimStatus(c *gin.Context) {
	var req manualStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, h.log, apperrors.NewValidationError("body", err.Error()))
		return
	}

	err := h.service.UpdateManualClaimStatus(c.Request.Context(), c.Param("id"), c.Param("steamId"), models.ManualClaimStatus(req.Status))
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *ClaimHandler) sweep(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			middleware.RespondError(c, h.log, apperrors.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	var reminderWindow time.Duration
	if raw := c.Query("reminderWindowMinutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			middleware.RespondError(c, h.log, apperrors.NewValidationError("reminderWindowMinutes", "must be a non-negative integer"))
			return
		}
		reminderWindow = time.Duration(minutes) * time.Minute
	}

	result, err := h.sweeper.Sweep(c.Request.Context(), limit, reminderWindow)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
