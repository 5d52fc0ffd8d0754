package models

// SymbolFilter - правила квантования инструмента.
type SymbolFilter struct {
	Symbol      string  `json:"symbol"`
	TickSize    float64 `json:"tickSize"`
	StepSize    float64 `json:"stepSize"`
	MinQty      float64 `json:"minQty"`
	MinNotional float64 `json:"minNotional"`
}

// OrderStatus как его отдаёт Bybit v5 (orderStatus).
type OrderStatus string

const (
	OrderStatusUnknown         OrderStatus = ""
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
	OrderStatusUntriggered     OrderStatus = "Untriggered"
	OrderStatusDeactivated     OrderStatus = "Deactivated"
)

// Open - ордер ещё висит в стакане и его можно отменить.
func (s OrderStatus) Open() bool {
	return s == OrderStatusNew || s == OrderStatusPartiallyFilled
}

// ExchangePosition - упрощённая позиция из /v5/position/list.
type ExchangePosition struct {
	Symbol   string
	Side     Side // пусто, если позиции нет
	Size     float64
	AvgPrice float64
	Leverage int
}

// LimitOrder - параметры лимитного ордера для ExchangeClient.
type LimitOrder struct {
	Symbol     string
	Side       string // "Buy"/"Sell"
	Price      float64
	Qty        float64
	LinkID     string
	ReduceOnly bool
}
