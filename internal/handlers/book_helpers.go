package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

// normalizeBookDocument tolerates legacy documents where category was a bare
// string and stock arrived as a mixed numeric type.
func normalizeBookDocument(raw bson.M) (models.Book, error) {
	if cat, ok := raw["category"].(string); ok {
		raw["category"] = []string{cat}
	}

	if val, ok := raw["stock"]; ok {
		switch typed := val.(type) {
		case int32:
			raw["stock"] = int(typed)
		case int64:
			raw["stock"] = int(typed)
		case float64:
			raw["stock"] = int(typed)
		case int:
			raw["stock"] = typed
		default:
			raw["stock"] = 0
		}
	} else {
		raw["stock"] = 0
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Book{}, err
	}

	var b models.Book
	if err := bson.Unmarshal(data, &b); err != nil {
		return models.Book{}, err
	}

	b.InStock = b.Stock > 0
	b.IsOnSale = isBookOnSale(b.Price, b.SaleEnabled, b.SalePrice)

	return b, nil
}

func decodeBooks(ctx context.Context, cursor *mongo.Cursor) ([]models.Book, error) {
	books := make([]models.Book, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		book, err := normalizeBookDocument(raw)
		if err != nil {
			return nil, err
		}

		books = append(books, book)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return books, nil
}
