package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"sarvbot/internal/panel"
	"sarvbot/internal/purchase"
	"sarvbot/internal/repository"
)

// AdminHandler exposes the operator endpoints: health, panel test
// connection, and the purchase entry point used by the storefront UI.
type AdminHandler struct {
	panels   *repository.PanelRepository
	adapters *panel.Registry
	buyer    *purchase.Service
	logger   *zap.Logger
}

func NewAdminHandler(panels *repository.PanelRepository, adapters *panel.Registry, buyer *purchase.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{panels: panels, adapters: adapters, buyer: buyer, logger: logger}
}

func (h *AdminHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"status": true})
}

// TestPanel probes a panel's health endpoint, surfacing whether the
// stored credentials still work.
func (h *AdminHandler) TestPanel(c echo.Context) error {
	code := c.Param("code")

	p, err := h.panels.FindByCode(code)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"status": false,
			"msg":    "panel not found",
		})
	}

	adapter, err := h.adapters.Get(p)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"status": false,
			"msg":    err.Error(),
		})
	}

	stats, err := adapter.SystemStats(c.Request().Context())
	if err != nil {
		h.logger.Warn("panel test failed", zap.String("panel", code), zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"status": false,
			"msg":    "panel is not reachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": true,
		"obj":    stats,
	})
}

type purchaseRequest struct {
	ChatID      string `json:"chat_id"`
	ProductCode string `json:"product_code"`
	Price       int64  `json:"price,omitempty"`
}

// Purchase runs one purchase transaction and returns the structured
// result the storefront renders.
func (h *AdminHandler) Purchase(c echo.Context) error {
	var req purchaseRequest
	if err := c.Bind(&req); err != nil || req.ChatID == "" || req.ProductCode == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"status": false,
			"msg":    "chat_id and product_code are required",
		})
	}

	result := h.buyer.Buy(c.Request().Context(), purchase.Request{
		ChatID:        req.ChatID,
		ProductCode:   req.ProductCode,
		PriceOverride: req.Price,
	})
	if !result.OK {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": false,
			"msg":    result.Message,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": true,
		"obj":    result.Invoice,
	})
}
