package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/config"
	"grocery-delivery-api/database"
	"grocery-delivery-api/handlers"
	"grocery-delivery-api/logging"
	"grocery-delivery-api/mailer"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/payments"
	"grocery-delivery-api/routes"
	"grocery-delivery-api/search"
	"grocery-delivery-api/storage"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger := logging.New("grocery-delivery-api")

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	// Advisory AWS layer: DynamoDB cache and S3 uploads. Both are optional;
	// without credentials the cache stays in memory and uploads inline.
	var cacheSvc cache.Service = cache.NewMemory()
	var uploads storage.Uploader = storage.Inline{}
	if cfg.AWSEnabled() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")),
		)
		if err != nil {
			logger.Warn("aws config failed, using local fallbacks", "error", err)
		} else {
			cacheSvc = cache.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTablePrefix)
			logger.Info("dynamodb cache enabled", "table_prefix", cfg.DynamoTablePrefix)
			if cfg.S3Bucket != "" {
				uploads = storage.WithFallback{
					Primary: storage.NewS3(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.AWSRegion),
				}
				logger.Info("s3 uploads enabled", "bucket", cfg.S3Bucket)
			}
		}
	}

	var productIndex *search.Index
	if cfg.ESURL != "" {
		productIndex, err = search.New(cfg.ESURL, cfg.ESUser, cfg.ESPassword, cfg.ESIndex)
		if err != nil {
			logger.Warn("elasticsearch unavailable, search falls back to the database", "error", err)
			productIndex = nil
		} else {
			logger.Info("product search index enabled", "index", cfg.ESIndex)
		}
	}

	var gateway *payments.Gateway
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		gateway = payments.New(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)
		logger.Info("razorpay gateway enabled")
	}

	var mail mailer.Mailer = mailer.Log{Logger: logger}
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	}

	orders := &handlers.OrderHandler{DB: db, Cache: cacheSvc}
	deps := routes.Deps{
		DB:        db,
		Cache:     cacheSvc,
		JWTSecret: cfg.JWTSecret,

		Status:    &handlers.StatusHandler{DB: db, Cache: cacheSvc, Search: productIndex},
		Auth:      &handlers.AuthHandler{DB: db, Cache: cacheSvc, Mailer: mail, Cfg: cfg},
		Users:     &handlers.UserHandler{DB: db, Cache: cacheSvc, Uploads: uploads},
		Products:  &handlers.ProductHandler{DB: db, Cache: cacheSvc, Search: productIndex, Uploads: uploads},
		Stores:    &handlers.StoreHandler{DB: db, Cache: cacheSvc, Uploads: uploads},
		Orders:    orders,
		Delivery:  &handlers.DeliveryHandler{DB: db, Orders: orders},
		Payments:  &handlers.PaymentHandler{DB: db, Gateway: gateway, Orders: orders},
		Analytics: &handlers.AnalyticsHandler{DB: db},
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())

	// CORS for the web frontend
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	r.Use(limiter.Middleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Grocery Delivery Marketplace API",
			"docs":    "/api/state-machine",
			"health":  "/api/health",
			"roles":   []string{"customer", "store_owner", "delivery_partner", "admin"},
		})
	})

	routes.SetupRoutes(r, deps)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("server starting", "addr", addr)
	if err := r.Run(addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
