package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/example/freshmart/internal/models"
)

// CartLine is one line of the cart snapshot handed to checkout.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
	UnitPrice float64   `json:"unit_price"`
}

// EvaluatedLine is a cart line after discount evaluation. Qty already
// includes BonusQty.
type EvaluatedLine struct {
	ProductID uuid.UUID
	Qty       int
	BonusQty  int
	UnitPrice float64
	Discount  float64
	LineTotal float64
}

// EvaluatedCart carries the recomputed totals.
type EvaluatedCart struct {
	Lines         []EvaluatedLine
	Subtotal      float64
	DiscountTotal float64
}

// StockDelta is an extra quantity a discount pulls from (positive) or hands
// back to (negative) live stock.
type StockDelta struct {
	ProductID uuid.UUID
	Qty       int
}

// EvaluateDiscounts applies the selected discounts to the cart and returns
// the updated cart plus the stock deltas BUYXGETX lines require. Pure: no
// ledger access.
func EvaluateDiscounts(lines []CartLine, discounts []models.Discount) (EvaluatedCart, []StockDelta, error) {
	byProduct := make(map[uuid.UUID][]models.Discount, len(discounts))
	for _, d := range discounts {
		byProduct[d.ProductID] = append(byProduct[d.ProductID], d)
	}

	cart := EvaluatedCart{Lines: make([]EvaluatedLine, 0, len(lines))}
	var deltas []StockDelta

	for _, line := range lines {
		evaluated := EvaluatedLine{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		}
		base := line.UnitPrice * float64(line.Qty)

		for _, d := range byProduct[line.ProductID] {
			switch d.Type {
			case models.DiscountTypePercentage:
				evaluated.Discount += base * d.Value / 100
			case models.DiscountTypeFixed:
				cut := d.Value
				if cut > base {
					cut = base
				}
				evaluated.Discount += cut
			case models.DiscountTypeBuyXGetX:
				bonus := int(d.Value)
				if bonus <= 0 {
					return EvaluatedCart{}, nil, &ValidationError{
						Msg: fmt.Sprintf("discount %s has non-positive bonus quantity", d.ID),
					}
				}
				evaluated.BonusQty += bonus
				deltas = append(deltas, StockDelta{ProductID: line.ProductID, Qty: bonus})
			default:
				return EvaluatedCart{}, nil, &ValidationError{
					Msg: fmt.Sprintf("unknown discount type %q", d.Type),
				}
			}
		}

		if evaluated.Discount > base {
			evaluated.Discount = base
		}
		evaluated.Qty += evaluated.BonusQty
		evaluated.LineTotal = base - evaluated.Discount

		cart.Subtotal += base
		cart.DiscountTotal += evaluated.Discount
		cart.Lines = append(cart.Lines, evaluated)
	}

	return cart, deltas, nil
}

// DiscountApplier pushes discount stock deltas through the ledger with
// compensating rollback, for the cart flow where quantities change against an
// already-reserved cart. At checkout the deltas instead ride in the single
// atomic reserve.
type DiscountApplier struct {
	ledger Ledger
}

func NewDiscountApplier(ledger Ledger) *DiscountApplier {
	return &DiscountApplier{ledger: ledger}
}

// Apply takes each bonus unit out of live stock, in order. If any line has
// no room, every adjustment already made in this call is undone in reverse
// order before the error surfaces.
func (a *DiscountApplier) Apply(ctx context.Context, storeID uuid.UUID, actorID *uuid.UUID, deltas []StockDelta) error {
	var done []StockDelta
	for _, d := range deltas {
		err := a.ledger.Adjust(ctx, storeID, d.ProductID, -d.Qty, models.StockReasonDiscountAdjust, actorID, "discount bonus hold")
		if err != nil {
			a.compensate(ctx, storeID, actorID, done)
			return err
		}
		done = append(done, d)
	}
	return nil
}

// Unapply hands the bonus units back when a discount is deselected.
func (a *DiscountApplier) Unapply(ctx context.Context, storeID uuid.UUID, actorID *uuid.UUID, deltas []StockDelta) error {
	for _, d := range deltas {
		if err := a.ledger.Adjust(ctx, storeID, d.ProductID, d.Qty, models.StockReasonDiscountAdjust, actorID, "discount bonus return"); err != nil {
			return err
		}
	}
	return nil
}

func (a *DiscountApplier) compensate(ctx context.Context, storeID uuid.UUID, actorID *uuid.UUID, done []StockDelta) {
	for i := len(done) - 1; i >= 0; i-- {
		d := done[i]
		if err := a.ledger.Adjust(ctx, storeID, d.ProductID, d.Qty, models.StockReasonDiscountAdjust, actorID, "discount bonus revert"); err != nil {
			log.Printf("[Discount] compensation failed for product %s: %v", d.ProductID, err)
		}
	}
}
