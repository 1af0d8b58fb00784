package handler

import (
	"github.com/coopware/lending-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, rateLimiter *middleware.RateLimiter, loanHandler *LoanHandler, paymentHandler *PaymentHandler) {
	// API version 1
	api := e.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rateLimiter))

	// Loan routes
	loans := api.Group("/loans")
	loans.POST("", loanHandler.CreateLoan)
	loans.POST("/preview", loanHandler.PreviewLoan)
	loans.GET("/:id", loanHandler.GetLoan)
	loans.GET("/:id/schedule", loanHandler.GetSchedule)

	// Payment routes
	payments := api.Group("/payments")
	payments.POST("", paymentHandler.AllocatePayment)
	payments.POST("/reversals", paymentHandler.ReversePayment)
	payments.PUT("/:paymentId", paymentHandler.EditPayment)
}
