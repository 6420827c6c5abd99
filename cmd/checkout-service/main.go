package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/orderbase/checkout/internal/cache"
	"github.com/orderbase/checkout/internal/checkout"
	"github.com/orderbase/checkout/internal/client"
	"github.com/orderbase/checkout/internal/config"
	"github.com/orderbase/checkout/internal/consumer"
	"github.com/orderbase/checkout/internal/db"
	"github.com/orderbase/checkout/internal/discovery"
	"github.com/orderbase/checkout/internal/handlers"
	"github.com/orderbase/checkout/internal/messaging"
	"github.com/orderbase/checkout/internal/models"
	"github.com/orderbase/checkout/internal/publisher"
)

func main() {
	cfg := config.Load()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to Consul
	var consul *discovery.ConsulClient
	if cfg.ConsulHost != "" {
		c, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort)
		if err != nil {
			log.Printf("⚠️ Consul unavailable, skipping registration: %v", err)
		} else {
			consul = c
		}
	}

	var apiResolver discovery.URLResolver
	if consul != nil {
		apiResolver = consul
	}
	apiURL := discovery.ResolveURL(apiResolver, cfg.APIServiceName, cfg.APIBaseURL)

	api := client.NewOrderbaseClient(apiURL, cfg.APITimeout)
	if cfg.APIUsername != "" {
		if err := api.Login(ctx, cfg.APIUsername, cfg.APIPassword); err != nil {
			log.Fatalf("Failed to log in to orderbase API: %v", err)
		}
		log.Printf("✅ Logged in to orderbase API as %s", cfg.APIUsername)
	}

	// Connect to PostgreSQL
	var repo *db.CheckoutRepository
	if cfg.PostgresHost != "" {
		database, err := db.NewPostgresDB(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare database schema: %v", err)
		}
		repo = db.NewCheckoutRepository(database)
	} else {
		log.Println("⚠️ POSTGRES_HOST not set, checkout ledger disabled")
	}

	// Connect to Redis
	var redisCache *cache.RedisCache
	if cfg.RedisHost != "" {
		c, err := cache.NewRedisCache(cfg.RedisHost, cfg.RedisPort, cfg.CacheTTL, cfg.LockTTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer c.Close()
		redisCache = c
	} else {
		log.Println("⚠️ REDIS_HOST not set, table locks and ledger cache disabled")
	}

	var (
		ledger   db.Ledger
		store    handlers.CheckoutStore
		recorder checkout.Recorder
		locker   checkout.Locker
	)
	if redisCache != nil {
		locker = redisCache
	}
	if repo != nil {
		ledger = repo
		if redisCache != nil {
			ledger = db.NewCachedCheckoutRepository(repo, redisCache)
		}
		store = ledger
		recorder = ledgerRecorder{ledger}
	}

	// Connect to RabbitMQ
	if ok, reason := useBroker(cfg.RabbitMQHost, ledger != nil); !ok {
		log.Printf("⚠️ %s", reason)
	} else {
		rabbitMQ, err := messaging.NewRabbitMQ(cfg.RabbitMQHost, cfg.RabbitMQPort, cfg.RabbitMQUser, cfg.RabbitMQPassword)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rabbitMQ.Close()

		checkoutPublisher, err := publisher.NewCheckoutPublisher(rabbitMQ)
		if err != nil {
			log.Fatalf("Failed to declare queue: %v", err)
		}
		recorder = checkoutPublisher

		// Start event consumer
		go startLedgerConsumer(ctx, rabbitMQ, ledger)
	}

	calculator, err := checkout.NewCalculator(cfg.TaxRate)
	if err != nil {
		log.Fatalf("Invalid TAX_RATE: %v", err)
	}

	pipeline := checkout.Pipeline{
		Resolver:   checkout.NewResolver(api),
		Aggregator: checkout.NewAggregator(api),
		Calculator: calculator,
		Committer:  checkout.NewCommitter(api, locker, recorder),
		ResetDelay: cfg.ResetDelay,
	}
	sessions := checkout.NewManager(pipeline)

	// Register with Consul
	if consul != nil {
		err := consul.Register(discovery.ServiceConfig{
			Name:       cfg.ServiceName,
			ID:         cfg.ServiceID,
			Address:    cfg.ServiceAddress,
			Port:       cfg.Port,
			HealthPath: "/health",
			Tags:       []string{"api", "checkout", "pos"},
			Meta: map[string]string{
				"orderbase_api": apiURL,
				"tax_rate":      cfg.TaxRate,
			},
		})
		if err != nil {
			log.Fatalf("Failed to register service: %v", err)
		}
	}

	// Deregister on shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		stop()
		if consul != nil {
			consul.Deregister(cfg.ServiceID)
		}
		os.Exit(0)
	}()

	router := handlers.NewRouter(
		handlers.NewCheckoutHandler(sessions, pipeline, cfg.QRBaseURL),
		handlers.NewLedgerHandler(store),
		cfg.CORSOrigins,
	)

	// Start server
	log.Printf("🚀 %s starting on http://localhost:%d", cfg.ServiceName, cfg.Port)
	log.Printf("   orderbase API at %s", apiURL)
	if err := router.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// useBroker decides whether checkout records travel through RabbitMQ. The
// consumer writes into the ledger, so a broker without one is pointless.
func useBroker(rabbitHost string, haveLedger bool) (bool, string) {
	switch {
	case rabbitHost == "" && !haveLedger:
		return false, "RABBITMQ_HOST not set, checkout records are not kept"
	case rabbitHost == "":
		return false, "RABBITMQ_HOST not set, checkout records are written directly"
	case !haveLedger:
		return false, "RABBITMQ_HOST set but POSTGRES_HOST is not, skipping RabbitMQ: no ledger to consume into"
	}
	return true, ""
}

// ledgerRecorder writes checkout records straight to the database when
// no broker is configured.
type ledgerRecorder struct {
	ledger db.Ledger
}

func (r ledgerRecorder) Record(ctx context.Context, rec models.CheckoutRecord) error {
	return r.ledger.Create(ctx, rec)
}

func startLedgerConsumer(ctx context.Context, mq *messaging.RabbitMQ, ledger db.Ledger) {
	messages, err := mq.Consume(publisher.CheckoutRecordedQueue, 10)
	if err != nil {
		log.Fatalf("Failed to consume messages: %v", err)
	}

	consumer.NewLedgerConsumer(ledger).ProcessCheckoutRecorded(ctx, messages)
}
