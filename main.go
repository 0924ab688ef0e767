package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"backend/internal/cache"
	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/handlers"
	"backend/internal/middleware"
	"backend/internal/reconcile"
	"backend/internal/shiprocket"
	"backend/internal/store"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureBookIndexes(db); err != nil {
		log.Printf("book index warning: %v", err)
	}
	if err := database.EnsureCustomerIndexes(db); err != nil {
		log.Printf("customer index warning: %v", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("order index warning: %v", err)
	}

	var trackingCache reconcile.TrackingCache
	if config.AppEnv.RedisURL != "" {
		redisClient, err := cache.Initialize(config.AppEnv.RedisURL)
		if err != nil {
			log.Printf("redis unavailable, tracking cache disabled: %v", err)
		} else {
			log.Println("Redis connected, tracking cache enabled")
			trackingCache = redisClient
		}
	}

	shipClient := shiprocket.NewClient(shiprocket.Config{
		BaseURL:   config.AppEnv.ShiprocketBaseURL,
		APIKey:    config.AppEnv.ShiprocketAPIKey,
		APISecret: config.AppEnv.ShiprocketAPISecret,
		Email:     config.AppEnv.ShiprocketEmail,
		Password:  config.AppEnv.ShiprocketPassword,
	})

	reconciler := reconcile.New(
		store.NewOrders(db),
		shipClient,
		trackingCache,
		config.AppEnv.ShiprocketPickupLocation,
	)

	r := gin.Default()

	r.POST("/admin/login", handlers.AdminLogin(db, config.AppEnv.JWTSecret, config.AppEnv.AccessTokenTTL))

	r.GET("/books", handlers.GetBooks(db))
	r.GET("/books/bundle", handlers.GetGradeBundle(db))
	r.GET("/categories", handlers.GetCategories(db))
	r.GET("/schools", handlers.GetSchools(db))

	r.POST("/orders", handlers.CreateOrder(db))
	r.GET("/orders/:id/tracking", handlers.GetOrderTracking(reconciler))

	r.POST("/webhooks/shiprocket", handlers.ShiprocketWebhook(reconciler, config.AppEnv.ShiprocketWebhookToken))

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(config.AppEnv.JWTSecret))
	{
		admin.GET("/me", func(c *gin.Context) {
			c.JSON(200, gin.H{"ok": true})
		})

		admin.GET("/books", handlers.GetAllBooks(db))
		admin.POST("/books", handlers.CreateBook(db))
		admin.PUT("/books/:id", handlers.UpdateBook(db))
		admin.DELETE("/books/:id", handlers.DeleteBook(db))

		admin.GET("/categories", handlers.GetAllCategories(db))
		admin.POST("/categories", handlers.CreateCategory(db))
		admin.PUT("/categories/:id", handlers.UpdateCategory(db))
		admin.DELETE("/categories/:id", handlers.DeleteCategory(db))

		admin.GET("/schools", handlers.GetAllSchools(db))
		admin.POST("/schools", handlers.CreateSchool(db))
		admin.PUT("/schools/:id", handlers.UpdateSchool(db))
		admin.DELETE("/schools/:id", handlers.DeleteSchool(db))

		admin.GET("/orders", handlers.GetOrders(db))
		admin.PUT("/orders/:id/status", handlers.UpdateOrderStatus(db))
		admin.DELETE("/orders/:id", handlers.DeleteOrder(db))

		admin.POST("/orders/:id/shipment", handlers.CreateShipment(reconciler))
		admin.POST("/orders/:id/shipment/refresh", handlers.RefreshShipmentStatus(reconciler))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
