package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/freshmart/internal/middleware"
	"github.com/example/freshmart/internal/services"
)

// StoreHandler exposes store resolution.
type StoreHandler struct {
	resolver *services.StoreResolver
}

// NewStoreHandler constructs StoreHandler.
func NewStoreHandler(resolver *services.StoreResolver) *StoreHandler {
	return &StoreHandler{resolver: resolver}
}

// Nearest resolves the serving store for a location given as lat/lon query
// params or as one of the user's saved addresses.
func (h *StoreHandler) Nearest(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	input := services.ResolveInput{UserID: userID}

	if raw := c.Query("address_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid address_id")
		}
		input.AddressID = &id
	} else {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
		if latErr != nil || lonErr != nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lon or address_id are required")
		}
		input.Lat = &lat
		input.Lon = &lon
	}

	resolution, err := h.resolver.Resolve(c.Context(), input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"store":           resolution.Store,
			"distance_meters": resolution.DistanceMeters,
			"in_range":        resolution.InRange,
		},
	})
}
