package http

import "github.com/labstack/echo/v4"

// MainRoutes wires the billing service. Webhook routes are public; the
// rest require an operator token.
func MainRoutes(webhook *WebhookHandler, diagnostics *DiagnosticsHandler, admin *AdminHandler) func(*echo.Echo, echo.MiddlewareFunc) {
	return func(e *echo.Echo, requireAdmin echo.MiddlewareFunc) {
		e.POST("/webhook/:provider", webhook.HandleWebhook)

		e.GET("/diagnostics/search", diagnostics.Search, requireAdmin)

		g := e.Group("/admin", requireAdmin)
		g.GET("/webhooks", admin.ListWebhooks)
		g.GET("/webhooks/:id", admin.GetWebhook)
		g.POST("/webhooks/:id/replay", admin.ReplayWebhook)
		g.GET("/providers/:provider/purchases/:transaction", admin.LookupPurchase)
		g.POST("/providers/:provider/purchases/:transaction/reconcile", admin.ReconcilePurchase)
		g.POST("/credentials/refresh", admin.RefreshCredentials)
	}
}

// RelayRoutes wires the relay process.
func RelayRoutes(relay *RelayHandler) func(*echo.Echo, echo.MiddlewareFunc) {
	return func(e *echo.Echo, requireAdmin echo.MiddlewareFunc) {
		e.POST("/webhook/:provider", relay.HandleWebhook)

		g := e.Group("/admin", requireAdmin)
		g.GET("/deliveries", relay.ListDeliveries)
		g.GET("/deliveries/:id", relay.GetDelivery)
		g.POST("/deliveries/:id/redeliver", relay.Redeliver)
	}
}
