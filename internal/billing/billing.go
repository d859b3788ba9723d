// Package billing holds the money rules shared by tabs and tables: line
// totals, service charge, final totals and cash change. Everything here is
// pure; callers decide which flags apply.
package billing

import (
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/shopspring/decimal"
)

// DefaultServiceChargeRate is the fixed 10% surcharge.
var DefaultServiceChargeRate = decimal.New(10, -2)

// Breakdown is the bill projection for one tab.
type Breakdown struct {
	Subtotal                    decimal.Decimal
	ServiceCharge               decimal.Decimal
	FinalTotal                  decimal.Decimal
	ServiceChargeIncluded       bool
	ServiceChargePaidSeparately bool
}

// LineTotal returns unitPrice × quantity rounded to cents.
func LineTotal(unitPrice decimal.Decimal, quantity int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(quantity)).Round(2)
}

// ServiceCharge returns subtotal × rate rounded to cents.
func ServiceCharge(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(2)
}

// Calculate projects the bill for a subtotal.
//
// The service charge is always reported; it is only added to the final total
// when it is included and not settled separately.
func Calculate(subtotal, rate decimal.Decimal, included, paidSeparately bool) Breakdown {
	charge := ServiceCharge(subtotal, rate)
	final := subtotal
	if included && !paidSeparately {
		final = final.Add(charge)
	}
	return Breakdown{
		Subtotal:                    subtotal.Round(2),
		ServiceCharge:               charge,
		FinalTotal:                  final.Round(2),
		ServiceChargeIncluded:       included,
		ServiceChargePaidSeparately: paidSeparately,
	}
}

// ChargedServiceCharge is the amount persisted on a closed tab: the computed
// charge when the customer accepted it, zero otherwise.
func (b Breakdown) ChargedServiceCharge() decimal.Decimal {
	if !b.ServiceChargeIncluded {
		return decimal.Zero
	}
	return b.ServiceCharge
}

// Change returns max(0, paid − finalTotal) for cash and zero for every other
// payment method.
func Change(paymentMethod string, paid, finalTotal decimal.Decimal) decimal.Decimal {
	if paymentMethod != enum.PaymentMethodCash {
		return decimal.Zero
	}
	change := paid.Sub(finalTotal)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change.Round(2)
}

// Total is the combined bill of several tabs sharing one table.
type Total struct {
	Subtotal      decimal.Decimal
	ServiceCharge decimal.Decimal
	FinalTotal    decimal.Decimal
}

// Sum aggregates breakdowns. ServiceCharge only counts charges that end up in
// the final totals.
func Sum(parts []Breakdown) Total {
	t := Total{Subtotal: decimal.Zero, ServiceCharge: decimal.Zero, FinalTotal: decimal.Zero}
	for _, p := range parts {
		t.Subtotal = t.Subtotal.Add(p.Subtotal)
		t.FinalTotal = t.FinalTotal.Add(p.FinalTotal)
		if p.ServiceChargeIncluded && !p.ServiceChargePaidSeparately {
			t.ServiceCharge = t.ServiceCharge.Add(p.ServiceCharge)
		}
	}
	return t
}
