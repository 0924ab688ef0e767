package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
GET /books
- pagination optional: applied only when both page and limit are present
- filters: school, grade, category, search
*/
func GetBooks(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /books"
		defer handlePanic(c, route)

		log.Printf(
			"[%s] hit page=%s limit=%s school=%s grade=%s category=%s search=%s",
			route,
			c.Query("page"),
			c.Query("limit"),
			c.Query("school"),
			c.Query("grade"),
			c.Query("category"),
			c.Query("search"),
		)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		filter := bson.M{
			"isActive":  bson.M{"$ne": false},
			"isDeleted": bson.M{"$ne": true},
		}

		if school := strings.TrimSpace(c.Query("school")); school != "" {
			schoolID, err := primitive.ObjectIDFromHex(school)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid school id")
				return
			}
			filter["schoolId"] = schoolID
		}

		if grade := strings.TrimSpace(c.Query("grade")); grade != "" {
			filter["grade"] = grade
		}

		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filter["category"] = bson.M{"$in": []string{category}}
		}

		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["name"] = bson.M{"$regex": search, "$options": "i"}
		}

		findOptions := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		pageStr := c.Query("page")
		limitStr := c.Query("limit")

		if pageStr != "" && limitStr != "" {
			page, limit, err := parsePaginationParams(pageStr, limitStr)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
				return
			}

			findOptions.
				SetSkip((page - 1) * limit).
				SetLimit(limit)
		}

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

		log.Printf("[%s] returning %d books", route, len(books))
		c.JSON(http.StatusOK, books)
	}
}

/*
GET /books/bundle?school=<id>&grade=<label>
- the full supply list for one school grade, never paginated
*/
func GetGradeBundle(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /books/bundle"
		defer handlePanic(c, route)

		schoolID, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Query("school")))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid school id")
			return
		}
		grade := strings.TrimSpace(c.Query("grade"))
		if grade == "" {
			respondWithError(c, http.StatusBadRequest, route, "grade is required")
			return
		}

		filter := bson.M{
			"isActive":  true,
			"isDeleted": bson.M{"$ne": true},
			"schoolId":  schoolID,
			"grade":     grade,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		// subject ordering keeps the bundle stable for the storefront
		findOptions := options.Find().
			SetSort(bson.D{{Key: "subject", Value: 1}, {Key: "name", Value: 1}})

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

		bundleTotal := 0.0
		for _, b := range books {
			bundleTotal += effectiveBookPrice(b.Price, b.SaleEnabled, b.SalePrice)
		}

		c.JSON(http.StatusOK, gin.H{
			"books":       books,
			"bundleTotal": bundleTotal,
		})
	}
}
