package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/models"
)

const ordersCollection = "orders"

const opTimeout = 5 * time.Second

// Orders is the mongo-backed order store consumed by the reconciliation
// subsystem. Updates are single-document $set merges; no transactions.
type Orders struct {
	db *mongo.Database
}

func NewOrders(db *mongo.Database) *Orders {
	return &Orders{db: db}
}

// Get loads an order by its hex id. A missing or malformed id yields
// (nil, nil), not an error.
func (s *Orders) Get(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var order models.Order
	err = s.db.Collection(ordersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByField returns the first order whose field equals value, or nil.
// Provider ids are assumed unique across orders; this takes the first match
// and cannot verify that assumption.
func (s *Orders) FindByField(ctx context.Context, field, value string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var order models.Order
	err := s.db.Collection(ordersCollection).FindOne(ctx, bson.M{field: value}, opts).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Update applies a partial-merge update to one order.
func (s *Orders) Update(ctx context.Context, orderID string, fields map[string]interface{}) error {
	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err = s.db.Collection(ordersCollection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M(fields)},
	)
	return err
}
