package models

import "time"

const OrderStatusPending = "Pending"

type OrderItem struct {
	MedicineID string  `bson:"medicine_id" json:"medicine_id"`
	Name       string  `bson:"name" json:"name"`
	Price      float64 `bson:"price" json:"price"`
	Quantity   int     `bson:"quantity" json:"quantity"`
}

type Order struct {
	ID          string      `bson:"_id" json:"id"`
	UserID      string      `bson:"user_id,omitempty" json:"user_id,omitempty"`
	UserEmail   string      `bson:"user_email,omitempty" json:"user_email,omitempty"`
	Items       []OrderItem `bson:"items" json:"items"`
	TotalAmount float64     `bson:"total_amount" json:"total_amount"`
	Status      string      `bson:"status,omitempty" json:"status"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
}

// DisplayStatus returns the status, defaulting to Pending when unset.
func (o *Order) DisplayStatus() string {
	if o.Status == "" {
		return OrderStatusPending
	}
	return o.Status
}
