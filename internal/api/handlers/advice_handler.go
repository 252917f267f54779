package handlers

import (
	"errors"

	"fin-advisor/internal/dto"
	"fin-advisor/internal/models"
	"fin-advisor/internal/service"
	"fin-advisor/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AdviceHandler struct {
	adviceService *service.AdviceService
	logger        *zap.Logger
}

func NewAdviceHandler(adviceService *service.AdviceService, logger *zap.Logger) *AdviceHandler {
	return &AdviceHandler{
		adviceService: adviceService,
		logger:        logger,
	}
}

// Ask godoc
// @Summary Ask for financial advice
// @Description Answer a free-form question using recent news, the stored profile and the conversation so far
// @Tags advice
// @Accept json
// @Produce json
// @Param request body dto.AskRequest true "Question"
// @Security Bearer
// @Success 200 {object} dto.RecommendationResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/ask [post]
func (h *AdviceHandler) Ask(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	rec, err := h.adviceService.Answer(c.UserContext(), userID, req.Query)
	if err != nil {
		return h.adviceError(c, err)
	}
	return c.JSON(toRecommendationResponse(rec))
}

// Recommend godoc
// @Summary Get investment options for a profile
// @Description Suggest investments for an explicit investment type and experience level
// @Tags advice
// @Accept json
// @Produce json
// @Param request body dto.RecommendRequest true "investment_type: short-term|long-term, experience_level: beginner|experienced"
// @Security Bearer
// @Success 200 {object} dto.RecommendationResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/recommend [post]
func (h *AdviceHandler) Recommend(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.RecommendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	rec, err := h.adviceService.Recommend(c.UserContext(), userID,
		models.InvestmentType(req.InvestmentType),
		models.ExperienceLevel(req.ExperienceLevel),
	)
	if err != nil {
		return h.adviceError(c, err)
	}
	return c.JSON(toRecommendationResponse(rec))
}

// RefreshCorpus godoc
// @Summary Rebuild the news corpus
// @Description Fetch the latest news and rebuild the retrieval index
// @Tags advice
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.CorpusResponse
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/corpus/refresh [post]
func (h *AdviceHandler) RefreshCorpus(c *fiber.Ctx) error {
	n, err := h.adviceService.RefreshCorpus(c.UserContext())
	if err != nil {
		h.logger.Error("Corpus refresh failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Corpus refresh failed",
		})
	}
	return c.JSON(dto.CorpusResponse{Documents: n})
}

func (h *AdviceHandler) adviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	case errors.Is(err, service.ErrInvalidProfile):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid investment_type or experience_level",
		})
	case errors.Is(err, service.ErrModelUnavailable):
		h.logger.Error("Advice generation failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Advice service is temporarily unavailable",
		})
	}
	h.logger.Error("Advice request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func toRecommendationResponse(rec *models.Recommendation) dto.RecommendationResponse {
	return dto.RecommendationResponse{
		Response:      rec.Response,
		Summary:       rec.Summary,
		Stability:     rec.Stability,
		HighGrowth:    rec.HighGrowth,
		PassiveIncome: rec.PassiveIncome,
		RiskLevel:     rec.RiskLevel,
	}
}
