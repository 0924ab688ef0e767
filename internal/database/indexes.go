package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureBookIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("books").Indexes()

	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "barcode", Value: 1}},
			Options: options.Index().
				SetName("barcode_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"barcode": bson.M{
						"$exists": true,
						"$ne":     "",
					},
				}),
		},
		{
			Keys:    bson.D{{Key: "schoolId", Value: 1}, {Key: "grade", Value: 1}},
			Options: options.Index().SetName("school_grade_index"),
		},
	}

	log.Println("EnsureBookIndexes: creating book indexes")
	_, err := indexes.CreateMany(ctx, models)
	if err != nil {
		log.Println("EnsureBookIndexes: index error:", err)
		return err
	}
	log.Println("EnsureBookIndexes: book indexes created")
	return nil
}

func EnsureCustomerIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("customers").Indexes()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	log.Println("EnsureCustomerIndexes: creating email_unique index")
	_, err := indexes.CreateOne(ctx, emailIndex)
	if err != nil {
		log.Println("EnsureCustomerIndexes: email index error:", err)
		return err
	}
	log.Println("EnsureCustomerIndexes: email_unique index created")
	return nil
}

// EnsureOrderIndexes backs the webhook lookups: orders are found by their
// provider order/shipment ids, and listed by creation time.
func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "shiprocketOrderId", Value: 1}},
			Options: options.Index().SetName("shiprocketOrderId_index").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "shiprocketShipmentId", Value: 1}},
			Options: options.Index().SetName("shiprocketShipmentId_index").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_index"),
		},
	}

	log.Println("EnsureOrderIndexes: creating order indexes")
	_, err := indexes.CreateMany(ctx, models)
	if err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: order indexes created")
	return nil
}
