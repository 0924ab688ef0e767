package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/models"
)

type BookCreateRequest struct {
	Name        string   `json:"name" binding:"required"`
	Publisher   string   `json:"publisher"`
	Price       float64  `json:"price" binding:"required"`
	SaleEnabled bool     `json:"saleEnabled"`
	SalePrice   float64  `json:"salePrice"`
	Category    []string `json:"category"`
	SchoolID    string   `json:"schoolId"`
	Grade       string   `json:"grade"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Barcode     string   `json:"barcode"`
	Stock       int      `json:"stock"`
	IsActive    *bool    `json:"isActive"`
}

type BookUpdateRequest struct {
	Name        *string   `json:"name"`
	Publisher   *string   `json:"publisher"`
	Price       *float64  `json:"price"`
	SaleEnabled *bool     `json:"saleEnabled"`
	SalePrice   *float64  `json:"salePrice"`
	Category    *[]string `json:"category"`
	SchoolID    *string   `json:"schoolId"`
	Grade       *string   `json:"grade"`
	Subject     *string   `json:"subject"`
	Description *string   `json:"description"`
	Barcode     *string   `json:"barcode"`
	Stock       *int      `json:"stock"`
	IsActive    *bool     `json:"isActive"`
}

/*
GET /admin/api/books
- all books including inactive, for the admin panel
*/
func GetAllBooks(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/books"
		defer handlePanic(c, route)

		filter := bson.M{"isDeleted": bson.M{"$ne": true}}

		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["name"] = bson.M{"$regex": search, "$options": "i"}
		}

		findOptions := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("books").Find(ctx, filter, findOptions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		books, err := decodeBooks(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": books})
	}
}

/*
POST /admin/api/books
*/
func CreateBook(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/books"
		defer handlePanic(c, route)

		var req BookCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}
		if req.Price <= 0 {
			respondWithError(c, http.StatusBadRequest, route, "price must be greater than 0")
			return
		}
		if err := validateSaleFields(req.Price, req.SaleEnabled, req.SalePrice, req.SalePrice > 0); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		book := models.Book{
			Name:        name,
			Publisher:   strings.TrimSpace(req.Publisher),
			Price:       req.Price,
			SaleEnabled: req.SaleEnabled,
			SalePrice:   req.SalePrice,
			Category:    models.StringList(req.Category),
			Grade:       strings.TrimSpace(req.Grade),
			Subject:     strings.TrimSpace(req.Subject),
			Description: strings.TrimSpace(req.Description),
			Barcode:     strings.TrimSpace(req.Barcode),
			Stock:       req.Stock,
			IsActive:    true,
			CreatedAt:   time.Now(),
		}
		if req.IsActive != nil {
			book.IsActive = *req.IsActive
		}

		if schoolHex := strings.TrimSpace(req.SchoolID); schoolHex != "" {
			schoolID, err := primitive.ObjectIDFromHex(schoolHex)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid schoolId")
				return
			}
			book.SchoolID = &schoolID
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		result, err := db.Collection("books").InsertOne(ctx, book)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusConflict, route, "barcode already exists")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		book.ID = result.InsertedID.(primitive.ObjectID)
		book.InStock = book.Stock > 0
		book.IsOnSale = isBookOnSale(book.Price, book.SaleEnabled, book.SalePrice)

		c.JSON(http.StatusCreated, book)
	}
}

/*
PUT /admin/api/books/:id
*/
func UpdateBook(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/books/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req BookUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var existing models.Book
		err = db.Collection("books").
			FindOne(ctx, bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}}).
			Decode(&existing)
		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusNotFound, route, "book not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		update := bson.M{}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.Publisher != nil {
			update["publisher"] = strings.TrimSpace(*req.Publisher)
		}
		if req.Category != nil {
			update["category"] = models.StringList(*req.Category)
		}
		if req.Grade != nil {
			update["grade"] = strings.TrimSpace(*req.Grade)
		}
		if req.Subject != nil {
			update["subject"] = strings.TrimSpace(*req.Subject)
		}
		if req.Description != nil {
			update["description"] = strings.TrimSpace(*req.Description)
		}
		if req.Barcode != nil {
			update["barcode"] = strings.TrimSpace(*req.Barcode)
		}
		if req.Stock != nil {
			if *req.Stock < 0 {
				respondWithError(c, http.StatusBadRequest, route, "stock cannot be negative")
				return
			}
			update["stock"] = *req.Stock
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}
		if req.SchoolID != nil {
			if schoolHex := strings.TrimSpace(*req.SchoolID); schoolHex != "" {
				schoolID, err := primitive.ObjectIDFromHex(schoolHex)
				if err != nil {
					respondWithError(c, http.StatusBadRequest, route, "invalid schoolId")
					return
				}
				update["schoolId"] = schoolID
			} else {
				update["schoolId"] = nil
			}
		}

		saleResult, err := resolveSaleUpdate(existing.Price, existing.SaleEnabled, existing.SalePrice, saleUpdateInput{
			Price:       req.Price,
			SaleEnabled: req.SaleEnabled,
			SalePrice:   req.SalePrice,
		})
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if req.Price != nil {
			update["price"] = saleResult.Price
		}
		if saleResult.SetSaleEnabled {
			update["saleEnabled"] = saleResult.SaleEnabled
		}
		if saleResult.SetSalePrice {
			update["salePrice"] = saleResult.SalePrice
		}

		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		var updatedRaw bson.M
		err = db.Collection("books").
			FindOneAndUpdate(
				ctx,
				bson.M{"_id": id},
				bson.M{"$set": update},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).
			Decode(&updatedRaw)
		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusNotFound, route, "book not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		updated, err := normalizeBookDocument(updatedRaw)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /admin/api/books/:id
- soft delete
*/
func DeleteBook(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/books/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		now := time.Now()
		result, err := db.Collection("books").UpdateOne(
			ctx,
			bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
			bson.M{"$set": bson.M{"isDeleted": true, "isActive": false, "deletedAt": now}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "book not found")
			return
		}

		c.Status(http.StatusNoContent)
	}
}
