package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"eventsphere/config"
	"eventsphere/events"
	"eventsphere/gateway"
	"eventsphere/handlers"
	"eventsphere/monitoring"
	"eventsphere/repository"
	"eventsphere/security"
	"eventsphere/services"
	"eventsphere/utils"

	_ "eventsphere/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ticket event fanout: always log, publish to PubNub when configured
	notifiers := []events.Notifier{events.LogNotifier{}}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn := pubnub.NewPubNub(pnConfig)
		notifiers = append(notifiers, events.NewPubNubNotifier(pn, cfg.TicketEventChannel))
	}

	bus := events.NewBus(cfg.EventBusBuffer, notifiers...)
	bus.OnDrop(monitoring.TrackEventDropped)
	bus.Start(ctx, cfg.EventBusWorkers)
	defer bus.Close()

	// Payment gateway
	var pg gateway.PaymentGateway = gateway.NewMockGateway()
	var confirmations <-chan *gateway.Confirmation
	if cfg.GatewayMode == "yespay" {
		yp, err := gateway.NewYesPay(ctx, cfg.YesPay)
		if err != nil {
			return err
		}
		defer yp.Close(context.Background())
		pg = yp
		confirmations = yp.Confirmations()
	}

	reconcileStore := services.NewReconcileStore(redisClient)
	limiter := security.NewRateLimiter(redisClient, cfg.PurchaseRateLimit, cfg.PurchaseRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Repositories over the app database
		balances := services.NewBalanceService(repository.NewDbxBalanceRepository(app.DB()))
		inventory := services.NewInventoryService(repository.NewDbxTicketRepository(app.DB()), bus)
		ledger := services.NewTransactionService(repository.NewDbxTransactionRepository(app.DB()), balances, pg, reconcileStore)

		// Retry journaled balance credits in the background
		worker := services.NewReconcileWorker(reconcileStore, balances, cfg.ReconcileInterval)
		go worker.Run(ctx)

		// Asynchronous provider confirmations finalize their transactions
		if confirmations != nil {
			go ledger.ConsumeConfirmations(ctx, confirmations)
		}

		ticketHandler := handlers.NewTicketHandler(inventory)
		txHandler := handlers.NewTransactionHandler(ledger)

		guard := limiter.PurchaseGuard()

		// Ticket endpoints
		e.Router.POST("/api/v1/tickets", ticketHandler.CreateTicket)
		e.Router.GET("/api/v1/tickets/{id}", ticketHandler.GetTicket)
		e.Router.GET("/api/v1/events/{eventId}/tickets", ticketHandler.ListEventTickets)
		e.Router.GET("/api/v1/tickets/{id}/availability", ticketHandler.CheckAvailability)
		e.Router.POST("/api/v1/tickets/{id}/allocate", ticketHandler.AllocateTickets).BindFunc(guard)
		e.Router.POST("/api/v1/tickets/{id}/release", ticketHandler.ReleaseTickets)
		e.Router.PATCH("/api/v1/tickets/{id}/quota", ticketHandler.UpdateQuota)
		e.Router.PATCH("/api/v1/tickets/{id}/price", ticketHandler.UpdatePrice)
		e.Router.PATCH("/api/v1/tickets/{id}/type", ticketHandler.UpdateType)
		e.Router.POST("/api/v1/tickets/{id}/expire", ticketHandler.ExpireTicket)
		e.Router.DELETE("/api/v1/tickets/{id}", ticketHandler.DeleteTicket)

		// Transaction endpoints
		e.Router.POST("/api/v1/transactions", txHandler.CreateTransaction)
		e.Router.GET("/api/v1/transactions", txHandler.ListUserTransactions)
		e.Router.GET("/api/v1/transactions/{id}", txHandler.GetTransaction)
		e.Router.POST("/api/v1/transactions/{id}/process", txHandler.ProcessPayment)
		e.Router.GET("/api/v1/transactions/{id}/validate", txHandler.ValidatePayment)
		e.Router.POST("/api/v1/transactions/{id}/refund", txHandler.RefundTransaction)
		e.Router.DELETE("/api/v1/transactions/{id}", txHandler.DeleteTransaction)

		// Balance endpoints
		e.Router.GET("/api/v1/balance", txHandler.GetBalance)
		e.Router.POST("/api/v1/balance/add-funds", txHandler.AddFunds).BindFunc(guard)
		e.Router.POST("/api/v1/balance/withdraw", txHandler.Withdraw).BindFunc(guard)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient, bus.Depth)
		go startOpsServer(cfg, limiter)
	}

	return app.Start()
}

// startOpsServer exposes Prometheus metrics on a separate port so the
// public API surface never serves them.
func startOpsServer(cfg *config.Config, limiter *security.RateLimiter) {
	e := echo.New()
	e.Use(limiter.AntiBotMiddleware())
	e.Use(limiter.RateLimit())
	e.GET("/metrics", func(c echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	if err := http.ListenAndServe(":"+cfg.MetricsPort, e); err != nil {
		slog.Error("ops server stopped", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
