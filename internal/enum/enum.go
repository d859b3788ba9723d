package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	TableStatusAvailable          = "AVAILABLE"
	TableStatusOccupied           = "OCCUPIED"
	TableStatusReserved           = "RESERVED"
	TableStatusPaidPendingRelease = "PAID_PENDING_RELEASE"
)

const (
	TabStatusOpen      = "OPEN"
	TabStatusClosed    = "CLOSED"
	TabStatusCancelled = "CANCELLED"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusDelivered = "DELIVERED"
)

const (
	CancellationStatusPending  = "PENDING"
	CancellationStatusApproved = "APPROVED"
	CancellationStatusRejected = "REJECTED"
)

const (
	ReturnStatusPending  = "PENDING"
	ReturnStatusApproved = "APPROVED"
	ReturnStatusRejected = "REJECTED"
	ReturnStatusResolved = "RESOLVED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin    = "ADMIN"
	UserRoleWaiter   = "WAITER"
	UserRoleKitchen  = "KITCHEN"
	UserRoleStandard = "STANDARD"
)

const (
	TabTypeTable   = "TABLE"
	TabTypeCounter = "COUNTER"
)

const (
	PaymentMethodCash       = "CASH"
	PaymentMethodPix        = "PIX"
	PaymentMethodCreditCard = "CREDIT_CARD"
	PaymentMethodDebitCard  = "DEBIT_CARD"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	SourceComanda = "COMANDA"
	SourceMesa    = "MESA"
)

const (
	CancellationCustomerLeft = "CUSTOMER_LEFT"
	CancellationWrongTab     = "WRONG_TAB"
	CancellationDuplicate    = "DUPLICATE"
	CancellationTest         = "TEST"
	CancellationOther        = "OTHER"
)

const (
	ReturnFoodQuality = "FOOD_QUALITY"
	ReturnWrongOrder  = "WRONG_ORDER"
	ReturnService     = "SERVICE"
	ReturnOther       = "OTHER"
)

// ReturnSubcategories is the fixed allowed subcategory set per return category.
var ReturnSubcategories = map[string][]string{
	ReturnFoodQuality: {"COLD", "UNDERCOOKED", "OVERCOOKED", "FOREIGN_OBJECT", "SPOILED"},
	ReturnWrongOrder:  {"WRONG_ITEM", "WRONG_SIZE", "MISSING_ITEM", "WRONG_SIDE"},
	ReturnService:     {"LATE_DELIVERY", "SPILLED", "DAMAGED_PACKAGING"},
	ReturnOther:       {"OTHER"},
}

// IsReturnSubcategory reports whether sub belongs to category's allowed set.
func IsReturnSubcategory(category, sub string) bool {
	for _, s := range ReturnSubcategories[category] {
		if s == sub {
			return true
		}
	}
	return false
}

func IsCancellationCategory(s string) bool {
	switch s {
	case CancellationCustomerLeft, CancellationWrongTab, CancellationDuplicate,
		CancellationTest, CancellationOther:
		return true
	}
	return false
}

func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodPix, PaymentMethodCreditCard, PaymentMethodDebitCard:
		return true
	}
	return false
}

func IsOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered:
		return true
	}
	return false
}

func IsTableStatus(s string) bool {
	switch s {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved, TableStatusPaidPendingRelease:
		return true
	}
	return false
}

func IsUserRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleWaiter, UserRoleKitchen, UserRoleStandard:
		return true
	}
	return false
}
