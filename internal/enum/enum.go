package enum

// ── Order state machine (as persisted by the backend) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeaway = "takeaway"
	OrderTypeDelivery = "delivery"
)

// ── Cashier payment actions ──

const (
	PaymentModeFull          = "FULL"
	PaymentModePartialAmount = "PARTIAL_AMOUNT"
	PaymentModePartialItems  = "PARTIAL_ITEMS"
	PaymentModeHybrid        = "HYBRID"
)

const (
	PaymentMethodCash = "CASH"
	PaymentMethodCard = "CARD"
)

const (
	DiscountModePercent = "PERCENT"
	DiscountModeAmount  = "AMOUNT"
)

// ── Print dispatch (per-station failover) ──

const (
	PrintStateNotAttempted    = "NOT_ATTEMPTED"
	PrintStateCloudSucceeded  = "CLOUD_SUCCEEDED"
	PrintStateBridgeSucceeded = "BRIDGE_SUCCEEDED"
	PrintStateBridgeFailed    = "BRIDGE_FAILED"
	PrintStateFailed          = "FAILED"
)
