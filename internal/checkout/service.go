package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/internal/inventory"
	"github.com/mariselaquino/tradepost-backend/internal/orders"
	"github.com/mariselaquino/tradepost-backend/internal/pricing"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/payloads"
)

// buyerProtectionWindow is how long purchase protection covers an order after
// checkout.
const buyerProtectionWindow = 90 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LineInput is one product/quantity pair in a checkout request.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CheckoutInput describes a checkout against a single vendor store.
type CheckoutInput struct {
	UserID          uuid.UUID
	VendorStoreID   uuid.UUID
	PaymentMethod   enums.PaymentMethod
	Lines           []LineInput
	ShippingCents   int
	TaxCents        int
	BuyerProtection bool
	Notes           *string
}

// QuoteLine is the priced form of one checkout line.
type QuoteLine struct {
	ProductID      uuid.UUID
	Quantity       int
	UnitPriceCents int
	DiscountCents  int
	TotalCents     int

	flashSales []flashSaleUse
}

type flashSaleUse struct {
	promotionID uuid.UUID
	qty         int
}

// Quote is a priced checkout before any stock is held.
type Quote struct {
	Currency       string
	Lines          []QuoteLine
	SubtotalCents  int
	DiscountsCents int
	ShippingCents  int
	TaxCents       int
	TotalCents     int
}

// Service orchestrates quote pricing, stock holds, and pending-order
// creation.
type Service interface {
	Quote(ctx context.Context, input CheckoutInput) (*Quote, error)
	PlaceOrder(ctx context.Context, input CheckoutInput) (*models.Order, error)
}

type service struct {
	repo      Repository
	orders    orders.Repository
	inventory inventory.Service
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a checkout service with the required dependencies.
func NewService(repo Repository, orderRepo orders.Repository, inv inventory.Service, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		orders:    orderRepo,
		inventory: inv,
		tx:        tx,
		outbox:    emitter,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Quote(ctx context.Context, input CheckoutInput) (*Quote, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	return s.quoteWith(ctx, s.repo, input)
}

func (s *service) PlaceOrder(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		quote, err := s.quoteWith(ctx, repo, input)
		if err != nil {
			return err
		}

		number, err := orderRepo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		now := s.now()
		order := &models.Order{
			ID:              uuid.New(),
			OrderNumber:     number,
			UserID:          input.UserID,
			VendorStoreID:   input.VendorStoreID,
			Currency:        quote.Currency,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			PaymentMethod:   input.PaymentMethod,
			SubtotalCents:   quote.SubtotalCents,
			DiscountsCents:  quote.DiscountsCents,
			ShippingCents:   quote.ShippingCents,
			TaxCents:        quote.TaxCents,
			TotalCents:      quote.TotalCents,
			BuyerProtection: input.BuyerProtection,
			Notes:           input.Notes,
		}
		if input.BuyerProtection {
			expires := now.Add(buyerProtectionWindow)
			order.BuyerProtectionExpiresAt = &expires
		}
		if _, err := orderRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(quote.Lines))
		for _, line := range quote.Lines {
			reservation, err := s.inventory.ReserveTx(ctx, tx, inventory.ReserveInput{
				ProductID:   line.ProductID,
				Quantity:    line.Quantity,
				RequestedBy: input.UserID,
			})
			if err != nil {
				return err
			}
			if err := s.inventory.AttachOrderTx(ctx, tx, reservation.ID, order.ID); err != nil {
				return err
			}

			for _, use := range line.flashSales {
				counted, err := repo.RecordFlashSaleUnits(ctx, use.promotionID, use.qty)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record flash sale units")
				}
				if !counted {
					return pkgerrors.New(pkgerrors.CodeConflict, "flash sale sold out during checkout")
				}
			}

			reservationID := reservation.ID
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				ProductID:      line.ProductID,
				ReservationID:  &reservationID,
				Quantity:       line.Quantity,
				UnitPriceCents: line.UnitPriceCents,
				DiscountCents:  line.DiscountCents,
				TotalCents:     line.TotalCents,
			})
		}
		if err := orderRepo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: &input.UserID, Role: enums.ActorRoleCustomer},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				VendorStoreID: order.VendorStoreID,
				TotalCents:    order.TotalCents,
				Currency:      order.Currency,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}

		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (s *service) quoteWith(ctx context.Context, repo Repository, input CheckoutInput) (*Quote, error) {
	now := s.now()
	quote := &Quote{
		ShippingCents: input.ShippingCents,
		TaxCents:      input.TaxCents,
	}

	for _, line := range input.Lines {
		product, err := repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": line.ProductID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": product.ID})
		}
		if product.VendorStoreID != input.VendorStoreID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product belongs to a different store").
				WithDetails(map[string]any{"product_id": product.ID})
		}
		if quote.Currency == "" {
			quote.Currency = product.Currency
		} else if quote.Currency != product.Currency {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "mixed currencies in one order")
		}

		priced, err := s.priceLine(ctx, repo, product, line.Quantity, now)
		if err != nil {
			return nil, err
		}
		quote.Lines = append(quote.Lines, *priced)
		quote.SubtotalCents += priced.UnitPriceCents * priced.Quantity
		quote.DiscountsCents += priced.DiscountCents
	}

	quote.TotalCents = quote.SubtotalCents - quote.DiscountsCents + quote.ShippingCents + quote.TaxCents
	return quote, nil
}

// priceLine applies volume tiers first, then active promotions folded
// sequentially against the running line price.
func (s *service) priceLine(ctx context.Context, repo Repository, product *models.Product, qty int, now time.Time) (*QuoteLine, error) {
	tierRows, err := repo.ListTiers(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount tiers")
	}
	promoRows, err := repo.ListPromotions(ctx, product.VendorStoreID, product.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotions")
	}

	unit := decimal.NewFromInt(int64(product.UnitPriceCents))
	lineTotal := unit.Mul(decimal.NewFromInt(int64(qty)))

	tierDiscount := pricing.CalculateTieredDiscount(unit, qty, pricing.TiersFromModels(tierRows))
	running := lineTotal.Sub(tierDiscount)
	if running.IsNegative() {
		running = decimal.Zero
	}

	line := &QuoteLine{
		ProductID:      product.ID,
		Quantity:       qty,
		UnitPriceCents: product.UnitPriceCents,
	}

	var discounts []pricing.Discount
	for _, promo := range promoRows {
		if !pricing.PromotionApplies(promo, now) {
			continue
		}
		discounts = append(discounts, pricing.DiscountFromPromotion(promo))
		if promo.IsFlashSale {
			line.flashSales = append(line.flashSales, flashSaleUse{promotionID: promo.ID, qty: qty})
		}
	}
	final := pricing.ApplyDiscounts(running, discounts)

	discount := lineTotal.Sub(final).Round(0).IntPart()
	line.DiscountCents = int(discount)
	line.TotalCents = product.UnitPriceCents*qty - line.DiscountCents
	return line, nil
}

func validateInput(input CheckoutInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.VendorStoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor store id required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if _, dup := seen[line.ProductID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in checkout lines")
		}
		seen[line.ProductID] = struct{}{}
	}
	if input.ShippingCents < 0 || input.TaxCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping and tax must be non-negative")
	}
	return nil
}
