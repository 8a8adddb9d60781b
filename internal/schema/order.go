package schema

import "github.com/shopspring/decimal"

// Side describes order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Multiplier returns +1 for buys and -1 for sells.
func (s Side) Multiplier() decimal.Decimal {
	if s == SideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Opposite returns the other direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType describes order type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce describes order time-in-force.
type TimeInForce string

const (
	TimeInForceGTC      TimeInForce = "gtc"
	TimeInForceIOC      TimeInForce = "ioc"
	TimeInForceFOK      TimeInForce = "fok"
	TimeInForcePostOnly TimeInForce = "post_only"
)

// OrderRequest carries everything needed to place a new order.
type OrderRequest struct {
	Symbol          string           `json:"symbol"`
	Side            Side             `json:"side"`
	Type            OrderType        `json:"orderType"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	TriggerPrice    *decimal.Decimal `json:"triggerPrice,omitempty"`
	TimeInForce     TimeInForce      `json:"timeInForce,omitempty"`
	ClientOrderID   string           `json:"clientOrderId,omitempty"`
	TakeProfit      *decimal.Decimal `json:"takeProfit,omitempty"`
	StopLoss        *decimal.Decimal `json:"stopLoss,omitempty"`
	DisplayQuantity *decimal.Decimal `json:"displayQuantity,omitempty"`
}

// OrderActionKind selects the variant of an OrderAction.
type OrderActionKind string

const (
	OrderActionPlace  OrderActionKind = "place"
	OrderActionCancel OrderActionKind = "cancel"
	OrderActionModify OrderActionKind = "modify"
)

// OrderModify amends price and/or quantity of a working order.
type OrderModify struct {
	OrderID     string           `json:"orderId"`
	Symbol      string           `json:"symbol"`
	NewPrice    *decimal.Decimal `json:"newPrice,omitempty"`
	NewQuantity *decimal.Decimal `json:"newQuantity,omitempty"`
}

// OrderAction is the instruction an execution algorithm hands back to the
// orchestrator: place a new order, cancel one, or modify one.
type OrderAction struct {
	Kind     OrderActionKind `json:"kind"`
	Place    *OrderRequest   `json:"place,omitempty"`
	CancelID string          `json:"cancelId,omitempty"`
	Modify   *OrderModify    `json:"modify,omitempty"`
}

// PlaceAction builds a place action.
func PlaceAction(req OrderRequest) OrderAction {
	return OrderAction{Kind: OrderActionPlace, Place: &req}
}

// CancelAction builds a cancel action.
func CancelAction(orderID string) OrderAction {
	return OrderAction{Kind: OrderActionCancel, CancelID: orderID}
}

// ModifyAction builds a modify action.
func ModifyAction(m OrderModify) OrderAction {
	return OrderAction{Kind: OrderActionModify, Modify: &m}
}
