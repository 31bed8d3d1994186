package models

import "time"

// OrderIntent: что раннер просит сделать исполнителя.
type OrderIntent struct {
	BotID    int64
	Symbol   string
	Side     Direction // направление позиции, не сторона ордера
	Price    float64   // ожидаемая цена (close последней свечи)
	Leverage int
	Reason   string
}

// Fill is the executor's confirmation. Filled=false means the order did not
// go through and no position change must be recorded.
type Fill struct {
	OrderID string
	Filled  bool
	Price   float64
	At      time.Time
}
