package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderItem represents a single book entry within an order.
type OrderItem struct {
	BookID   primitive.ObjectID `bson:"bookId" json:"bookId"`
	Name     string             `bson:"name" json:"name"`
	SKU      string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Price    float64            `bson:"price" json:"price"`
	Quantity int                `bson:"quantity" json:"quantity"`
}

// ShippingAddress is the delivery destination captured at checkout.
type ShippingAddress struct {
	FullName    string `bson:"fullName" json:"fullName"`
	Phone       string `bson:"phone" json:"phone"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
	AddressLine string `bson:"addressLine" json:"addressLine"`
	City        string `bson:"city" json:"city"`
	State       string `bson:"state" json:"state"`
	PinCode     string `bson:"pinCode" json:"pinCode"`
	Country     string `bson:"country,omitempty" json:"country,omitempty"`
}

// IsEmpty reports whether no usable destination was captured.
func (a ShippingAddress) IsEmpty() bool {
	return a.AddressLine == "" && a.City == "" && a.PinCode == ""
}

// Order defines the persisted order document.
//
// OrderNumber is assigned at creation and never changes. The Shiprocket
// fields start empty and are filled in by the shipment subsystem: the IDs
// once when the shipment is created, status/AWB repeatedly as reconciliation
// runs. They are never cleared.
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderNumber     string              `bson:"orderNumber" json:"orderNumber"`
	CustomerID      *primitive.ObjectID `bson:"customerId" json:"customerId"`
	Items           []OrderItem         `bson:"items" json:"items"`
	ShippingAddress ShippingAddress     `bson:"shippingAddress" json:"shippingAddress"`
	Subtotal        float64             `bson:"subtotal" json:"subtotal"`
	ShippingCharge  float64             `bson:"shippingCharge" json:"shippingCharge"`
	Total           float64             `bson:"total" json:"total"`
	PaymentMethod   string              `bson:"paymentMethod" json:"paymentMethod"`

	OrderStatus    string `bson:"orderStatus" json:"orderStatus"`
	PaymentStatus  string `bson:"paymentStatus" json:"paymentStatus"`
	DeliveryStatus string `bson:"deliveryStatus" json:"deliveryStatus"`

	ShiprocketOrderID    string     `bson:"shiprocketOrderId,omitempty" json:"shiprocketOrderId,omitempty"`
	ShiprocketShipmentID string     `bson:"shiprocketShipmentId,omitempty" json:"shiprocketShipmentId,omitempty"`
	ShiprocketAWB        string     `bson:"shiprocketAWB,omitempty" json:"shiprocketAWB,omitempty"`
	TrackingNumber       string     `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	ShiprocketStatus     string     `bson:"shiprocketStatus,omitempty" json:"shiprocketStatus,omitempty"`
	ShiprocketLastUpdate *time.Time `bson:"shiprocketLastUpdated,omitempty" json:"shiprocketLastUpdated,omitempty"`

	IsDeleted bool      `bson:"isDeleted,omitempty" json:"isDeleted,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
