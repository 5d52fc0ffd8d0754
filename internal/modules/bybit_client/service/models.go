package service

type instrumentsResult struct {
	List []struct {
		Symbol      string `json:"symbol"`
		Status      string `json:"status"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
		LotSizeFilter struct {
			QtyStep     string `json:"qtyStep"`
			StepSize    string `json:"stepSize"`
			MinOrderQty string `json:"minOrderQty"`
			MinOrderAmt string `json:"minOrderAmt"`
			// у линейных контрактов минимальный нотионал называется так
			MinNotionalValue string `json:"minNotionalValue"`
		} `json:"lotSizeFilter"`
	} `json:"list"`
}

type positionsResult struct {
	List []struct {
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		Size        string `json:"size"`
		AvgPrice    string `json:"avgPrice"`
		Leverage    string `json:"leverage"`
		PositionIdx int    `json:"positionIdx"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

type ordersResult struct {
	List []struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
		OrderStatus string `json:"orderStatus"`
		CumExecQty  string `json:"cumExecQty"`
	} `json:"list"`
}

type createOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}
