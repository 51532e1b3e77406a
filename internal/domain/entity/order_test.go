package entity

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validOrder() Order {
	return Order{
		Market: Market{Exchange: "Coinbase", Base: "BTC", Quote: "USD", Resolution: 1},
		Side:   OrderSideBuy,
		Price:  decimal.RequireFromString("50000"),
		Amount: decimal.RequireFromString("0.5"),
	}
}

func TestOrder_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Order)
		wantErr bool
	}{
		{
			name:    "valid buy order",
			mutate:  func(o *Order) {},
			wantErr: false,
		},
		{
			name:    "valid sell order",
			mutate:  func(o *Order) { o.Side = OrderSideSell },
			wantErr: false,
		},
		{
			name:    "invalid side",
			mutate:  func(o *Order) { o.Side = "short" },
			wantErr: true,
		},
		{
			name:    "zero price",
			mutate:  func(o *Order) { o.Price = decimal.Zero },
			wantErr: true,
		},
		{
			name:    "negative price",
			mutate:  func(o *Order) { o.Price = decimal.RequireFromString("-1") },
			wantErr: true,
		},
		{
			name:    "zero amount",
			mutate:  func(o *Order) { o.Amount = decimal.Zero },
			wantErr: true,
		},
		{
			name:    "invalid market",
			mutate:  func(o *Order) { o.Market.Base = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOrder()
			tt.mutate(&o)

			err := o.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrderSide_Opposite(t *testing.T) {
	if OrderSideBuy.Opposite() != OrderSideSell {
		t.Error("Opposite() of buy should be sell")
	}
	if OrderSideSell.Opposite() != OrderSideBuy {
		t.Error("Opposite() of sell should be buy")
	}
}

func TestOrder_Remaining(t *testing.T) {
	o := validOrder()
	o.Filled = decimal.RequireFromString("0.2")

	want := decimal.RequireFromString("0.3")
	if !o.Remaining().Equal(want) {
		t.Errorf("Remaining() = %v, want %v", o.Remaining(), want)
	}
}
