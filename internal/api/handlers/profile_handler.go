package handlers

import (
	"errors"
	"time"

	"fin-advisor/internal/dto"
	"fin-advisor/internal/models"
	"fin-advisor/internal/repository"
	"fin-advisor/internal/service"
	"fin-advisor/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProfileHandler struct {
	profileService *service.ProfileService
	logger         *zap.Logger
}

func NewProfileHandler(profileService *service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		logger:         logger,
	}
}

// GetProfile godoc
// @Summary Get investment profile
// @Tags profile
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.ProfileResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/profile [get]
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	profile, err := h.profileService.Get(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		h.logger.Error("Failed to load profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load profile",
		})
	}
	return c.JSON(toProfileResponse(profile))
}

// UpdateProfile godoc
// @Summary Update investment profile
// @Description Partial update; omitted fields keep their stored value. Live connections receive a profile event.
// @Tags profile
// @Accept json
// @Produce json
// @Param request body dto.UpdateProfileRequest true "investment_type: short-term|long-term, experience_level: beginner|experienced"
// @Security Bearer
// @Success 200 {object} dto.ProfileResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/profile [put]
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var update models.ProfileUpdate
	if req.InvestmentType != nil {
		v := models.InvestmentType(*req.InvestmentType)
		update.InvestmentType = &v
	}
	if req.ExperienceLevel != nil {
		v := models.ExperienceLevel(*req.ExperienceLevel)
		update.ExperienceLevel = &v
	}

	profile, err := h.profileService.Update(c.UserContext(), userID, update)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyProfileUpdate):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Nothing to update",
			})
		case errors.Is(err, service.ErrInvalidProfile):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid investment_type or experience_level",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}
	return c.JSON(toProfileResponse(profile))
}

func toProfileResponse(p *models.Profile) dto.ProfileResponse {
	resp := dto.ProfileResponse{
		InvestmentType:  string(p.InvestmentType),
		ExperienceLevel: string(p.ExperienceLevel),
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
