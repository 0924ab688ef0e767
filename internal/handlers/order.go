package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
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

/* =========================
   REQUEST DTOs
========================= */

type createOrderItemRequest struct {
	BookID   string `json:"bookId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

type createOrderAddressRequest struct {
	FullName    string `json:"fullName" binding:"required"`
	Phone       string `json:"phone" binding:"required"`
	Email       string `json:"email"`
	AddressLine string `json:"addressLine" binding:"required"`
	City        string `json:"city" binding:"required"`
	State       string `json:"state" binding:"required"`
	PinCode     string `json:"pinCode" binding:"required"`
	Country     string `json:"country"`
}

type createOrderRequest struct {
	Items           []createOrderItemRequest  `json:"items" binding:"required"`
	ShippingAddress createOrderAddressRequest `json:"shippingAddress" binding:"required"`
	PaymentMethod   string                    `json:"paymentMethod" binding:"required"`
}

/* =========================
   CREATE ORDER
========================= */

func CreateOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		order, err := buildOrderFromRequest(req)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var orderID primitive.ObjectID
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			calculatedItems := make([]models.OrderItem, 0, len(order.Items))
			calculatedTotal := 0.0

			// prices always come from the stored book, never the client
			for _, item := range order.Items {
				var book models.Book
				err := db.Collection("books").FindOne(
					sessCtx,
					bson.M{
						"_id":       item.BookID,
						"isDeleted": bson.M{"$ne": true},
					},
				).Decode(&book)
				if err == mongo.ErrNoDocuments {
					return nil, bookNotFoundError{BookID: item.BookID}
				}
				if err != nil {
					return nil, err
				}

				if book.Stock < item.Quantity {
					return nil, outOfStockError{
						BookID:    item.BookID,
						Available: book.Stock,
						Requested: item.Quantity,
					}
				}

				unitPrice := effectiveBookPrice(book.Price, book.SaleEnabled, book.SalePrice)
				calculatedItems = append(calculatedItems, models.OrderItem{
					BookID:   item.BookID,
					Name:     book.Name,
					SKU:      book.Barcode,
					Price:    unitPrice,
					Quantity: item.Quantity,
				})
				calculatedTotal += unitPrice * float64(item.Quantity)

				filter := bson.M{
					"_id":       item.BookID,
					"isDeleted": bson.M{"$ne": true},
					"stock":     bson.M{"$gte": item.Quantity},
				}
				update := bson.M{"$inc": bson.M{"stock": -item.Quantity}}

				res, err := db.Collection("books").UpdateOne(sessCtx, filter, update)
				if err != nil {
					return nil, err
				}
				if res.MatchedCount == 0 {
					return nil, outOfStockError{
						BookID:    item.BookID,
						Available: book.Stock,
						Requested: item.Quantity,
					}
				}
			}

			order.Items = calculatedItems
			order.Subtotal = calculatedTotal
			order.Total = calculatedTotal + order.ShippingCharge

			res, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				orderID = id
			}
			return nil, nil
		})
		if err != nil {
			var stockErr outOfStockError
			if errors.As(err, &stockErr) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":     "insufficient stock",
					"bookId":    stockErr.BookID.Hex(),
					"available": stockErr.Available,
					"requested": stockErr.Requested,
				})
				return
			}
			var notFoundErr bookNotFoundError
			if errors.As(err, &notFoundErr) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":  "book not found",
					"bookId": notFoundErr.BookID.Hex(),
				})
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if !orderID.IsZero() {
			order.ID = orderID
		}

		log.Printf("[ORDER] [INFO] order %s created (%d items)", order.OrderNumber, len(order.Items))

		c.JSON(http.StatusCreated, gin.H{
			"orderId":     order.ID.Hex(),
			"orderNumber": order.OrderNumber,
			"total":       order.Total,
			"message":     "order created",
		})
	}
}

/* =========================
   ADMIN: LIST ORDERS
========================= */

func GetOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		filter := bson.M{"isDeleted": bson.M{"$ne": true}}

		if status := strings.TrimSpace(c.Query("status")); status != "" {
			filter["orderStatus"] = status
		}
		if status := strings.TrimSpace(c.Query("deliveryStatus")); status != "" {
			filter["deliveryStatus"] = status
		}

		findOptions := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		if pageStr, limitStr := c.Query("page"), c.Query("limit"); pageStr != "" && limitStr != "" {
			page, limit, err := parsePaginationParams(pageStr, limitStr)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
				return
			}
			findOptions.SetSkip((page - 1) * limit).SetLimit(limit)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("orders").Find(ctx, filter, findOptions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		var orders []models.Order
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		log.Printf("[%s] returning %d orders", route, len(orders))
		c.JSON(http.StatusOK, orders)
	}
}

/* =========================
   ADMIN: UPDATE STATUS
========================= */

type orderStatusUpdateRequest struct {
	OrderStatus   *string `json:"orderStatus"`
	PaymentStatus *string `json:"paymentStatus"`
}

var allowedOrderStatuses = map[string]bool{
	"pending": true, "confirmed": true, "processing": true,
	"shipped": true, "delivered": true, "cancelled": true,
}

var allowedPaymentStatuses = map[string]bool{
	"pending": true, "paid": true, "failed": true, "refunded": true,
}

func UpdateOrderStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req orderStatusUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		update := bson.M{}
		if req.OrderStatus != nil {
			if !allowedOrderStatuses[*req.OrderStatus] {
				respondWithError(c, http.StatusBadRequest, route, "invalid orderStatus")
				return
			}
			update["orderStatus"] = *req.OrderStatus
		}
		if req.PaymentStatus != nil {
			if !allowedPaymentStatuses[*req.PaymentStatus] {
				respondWithError(c, http.StatusBadRequest, route, "invalid paymentStatus")
				return
			}
			update["paymentStatus"] = *req.PaymentStatus
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		update["updatedAt"] = time.Now()

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var updated models.Order
		err = db.Collection("orders").
			FindOneAndUpdate(
				ctx,
				bson.M{"_id": orderID},
				bson.M{"$set": update},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).
			Decode(&updated)

		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

/* =========================
   ADMIN: DELETE ORDER
========================= */

// DeleteOrder soft-deletes; shipment fields stay on the document so webhook
// lookups for in-flight shipments keep working.
func DeleteOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:id"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		result, err := db.Collection("orders").UpdateOne(
			ctx,
			bson.M{"_id": orderID},
			bson.M{"$set": bson.M{"isDeleted": true, "updatedAt": time.Now()}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}

/* =========================
   BUILD ORDER
========================= */

func buildOrderFromRequest(req createOrderRequest) (models.Order, error) {
	if len(req.Items) == 0 {
		return models.Order{}, errors.New("at least one item is required")
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method != "cod" && method != "razorpay" {
		return models.Order{}, errors.New("invalid payment method")
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		bookID, err := primitive.ObjectIDFromHex(item.BookID)
		if err != nil {
			return models.Order{}, errors.New("invalid bookId")
		}
		if item.Quantity <= 0 {
			return models.Order{}, errors.New("quantity must be greater than zero")
		}
		items = append(items, models.OrderItem{
			BookID:   bookID,
			Quantity: item.Quantity,
		})
	}

	now := time.Now()
	order := models.Order{
		OrderNumber: newOrderNumber(now),
		Items:       items,
		ShippingAddress: models.ShippingAddress{
			FullName:    strings.TrimSpace(req.ShippingAddress.FullName),
			Phone:       strings.TrimSpace(req.ShippingAddress.Phone),
			Email:       strings.TrimSpace(req.ShippingAddress.Email),
			AddressLine: strings.TrimSpace(req.ShippingAddress.AddressLine),
			City:        strings.TrimSpace(req.ShippingAddress.City),
			State:       strings.TrimSpace(req.ShippingAddress.State),
			PinCode:     strings.TrimSpace(req.ShippingAddress.PinCode),
			Country:     strings.TrimSpace(req.ShippingAddress.Country),
		},
		PaymentMethod:  method,
		OrderStatus:    "pending",
		PaymentStatus:  "pending",
		DeliveryStatus: "pending",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return order, nil
}

// newOrderNumber builds the human-readable immutable identifier, e.g.
// SS-20250830-D41F2A.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(primitive.NewObjectID().Hex())
	return fmt.Sprintf("SS-%s-%s", now.Format("20060102"), suffix[len(suffix)-6:])
}

type outOfStockError struct {
	BookID    primitive.ObjectID
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return "book out of stock"
}

type bookNotFoundError struct {
	BookID primitive.ObjectID
}

func (e bookNotFoundError) Error() string {
	return "book not found"
}
