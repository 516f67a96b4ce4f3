package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/freshmart/internal/services"
)

// respondServiceError translates typed service errors into HTTP responses.
// Anything unrecognized bubbles up to the fiber error handler as a 500.
func respondServiceError(c *fiber.Ctx, err error) error {
	var (
		validation *services.ValidationError
		notFound   *services.NotFoundError
		stock      *services.InsufficientStockError
		outOfArea  *services.OutOfServiceAreaError
		mismatch   *services.StoreMismatchError
		illegal    *services.IllegalTransitionError
		invalidOp  *services.InvalidOperationError
		conflict   *services.ConcurrencyConflictError
	)

	switch {
	case errors.As(err, &validation):
		return writeError(c, fiber.StatusBadRequest, services.KindValidation, validation.Error(), nil)
	case errors.As(err, &invalidOp):
		return writeError(c, fiber.StatusBadRequest, services.KindInvalidOperation, invalidOp.Error(), nil)
	case errors.As(err, &notFound):
		return writeError(c, fiber.StatusNotFound, services.KindNotFound, notFound.Error(), nil)
	case errors.As(err, &stock):
		return writeError(c, fiber.StatusConflict, services.KindInsufficientStock, stock.Error(), fiber.Map{
			"store_id":   stock.StoreID,
			"product_id": stock.ProductID,
			"requested":  stock.Requested,
			"available":  stock.Available,
		})
	case errors.As(err, &outOfArea):
		return writeError(c, fiber.StatusConflict, services.KindOutOfServiceArea, outOfArea.Error(), fiber.Map{
			"store_name":        outOfArea.StoreName,
			"distance_meters":   outOfArea.DistanceMeters,
			"service_radius_km": outOfArea.RadiusKm,
		})
	case errors.As(err, &mismatch):
		return writeError(c, fiber.StatusConflict, services.KindStoreMismatch, mismatch.Error(), fiber.Map{
			"cart_store_id":     mismatch.CartStoreID,
			"resolved_store_id": mismatch.ResolvedStoreID,
		})
	case errors.As(err, &illegal):
		return writeError(c, fiber.StatusConflict, services.KindIllegalTransition, illegal.Error(), fiber.Map{
			"current_status": illegal.Current,
			"event":          illegal.Event,
		})
	case errors.As(err, &conflict):
		return writeError(c, fiber.StatusConflict, services.KindConcurrencyConflict, conflict.Error(), nil)
	default:
		return err
	}
}

func writeError(c *fiber.Ctx, status int, kind, message string, data fiber.Map) error {
	body := fiber.Map{
		"success": false,
		"error": fiber.Map{
			"kind":    kind,
			"message": message,
		},
	}
	if data != nil {
		body["error"].(fiber.Map)["data"] = data
	}
	return c.Status(status).JSON(body)
}
