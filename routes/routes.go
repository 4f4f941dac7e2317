package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/mawulik/togomart/config"
	"github.com/mawulik/togomart/controllers"
	"github.com/mawulik/togomart/middleware"
	"github.com/mawulik/togomart/services"
	"github.com/mawulik/togomart/utils"
)

// SetupRouter wires the services and controllers and returns the Gin
// router. The gateway client receives its configuration explicitly; the
// webhook route is the only payment route without authentication.
func SetupRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(utils.LoggerMiddleware())
	router.Use(utils.CORSMiddleware())
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.RequestIDMiddleware())

	gateway := services.NewPayGateClient(cfg.PayGate)
	paymentService := services.NewPaymentService(config.DB, gateway)

	authController := controllers.NewAuthController(config.DB, cfg.JWTSecret)
	orderController := controllers.NewOrderController(config.DB)
	paymentController := controllers.NewPaymentController(paymentService)

	v1 := router.Group("/v1")
	{
		v1.POST("/auth/login", authController.Login)

		payments := v1.Group("/payments")
		{
			// PayGate calls this back directly; no auth, idempotent.
			payments.POST("/webhook/", paymentController.Webhook)

			authed := payments.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
			{
				authed.POST("/mobile-payment/initiate/", paymentController.InitiateMobilePayment)
				authed.POST("/check-status/", paymentController.CheckStatus)
				authed.GET("/", paymentController.ListPayments)
				authed.GET("/:id/", paymentController.GetPayment)
				authed.GET("/:id/status/", paymentController.PaymentStatus)

				admin := authed.Group("", middleware.AdminMiddleware())
				{
					admin.GET("/balance/", paymentController.Balance)
					admin.POST("/:id/refund/", paymentController.RefundPayment)
				}
			}
		}

		orders := v1.Group("/orders", middleware.AuthMiddleware(cfg.JWTSecret))
		{
			orders.POST("/", orderController.CreateOrder)
			orders.GET("/:id/", orderController.GetOrder)
		}
	}

	return router
}
