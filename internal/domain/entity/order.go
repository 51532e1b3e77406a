package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side. Used when a reversed market orientation
// flips an order's direction.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus is the lifecycle state reported by the exchange.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
)

// Order represents one limit order on an exchange. Only limit orders are
// modeled; the toolkit does not place market orders.
type Order struct {
	ID        string
	Market    Market
	Side      OrderSide
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Filled    decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
}

// Validate validates the Order fields for placement. ID and Status are
// assigned by the exchange and not checked here.
func (o *Order) Validate() error {
	if err := o.Market.Validate(); err != nil {
		return err
	}
	if o.Side != OrderSideBuy && o.Side != OrderSideSell {
		return &ValidationError{Field: "side", Message: "side must be buy or sell"}
	}
	if !o.Price.IsPositive() {
		return &ValidationError{Field: "price", Message: "price must be positive"}
	}
	if !o.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	return nil
}

// Remaining returns the unfilled amount.
func (o *Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.Filled)
}
