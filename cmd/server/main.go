package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	restate "github.com/restatedev/sdk-go"
	"github.com/restatedev/sdk-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"

	internalapi "github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/api"
	appconfig "github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/payment"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reconcile"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/reservation"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/secrets"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/cookie"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/postgres"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/redisstore"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/restatestore"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/sqlite"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/telemetry"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) {
	if !cfg.Telemetry.Enabled {
		logger.Println("Tracing disabled (OTEL_ENABLED=false)")
		return
	}
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Telemetry.Endpoint)
			if err != nil {
				logger.Printf("WARNING: tracing not initialized: %v", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown != nil {
				return shutdown(ctx)
			}
			return nil
		},
	})
}

// newPublisher returns the Kafka producer, or a log-only publisher when Kafka
// is disabled.
func newPublisher(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) events.Publisher {
	if !cfg.Kafka.Enabled {
		logger.Println("Kafka disabled; reservation events are only logged")
		return events.LogPublisher{}
	}
	prod := events.NewProducer(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newCookieCodec(cfg appconfig.Config, logger *log.Logger) *cookie.Codec {
	hashKey := []byte(cfg.Store.CookieHashKey)
	blockKey := []byte(cfg.Store.CookieBlockKey)
	if len(hashKey) == 0 {
		logger.Println("WARNING: COOKIE_HASH_KEY not set; generated a random key, stored reservations will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	if len(blockKey) == 0 {
		logger.Println("WARNING: COOKIE_BLOCK_KEY not set; generated a random key, stored reservations will not survive a restart")
		blockKey = securecookie.GenerateRandomKey(32)
	}
	return cookie.NewCodec(cookie.Options{
		HashKey:  hashKey,
		BlockKey: blockKey,
		MaxAge:   cfg.Store.TTL,
		Secure:   cfg.Store.CookieSecure,
	})
}

// newSlotProvider picks where pending reservations live (INTENT_STORE).
func newSlotProvider(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, codec *cookie.Codec) (internalapi.SlotProvider, error) {
	ctx := context.Background()
	switch cfg.Store.Backend {
	case appconfig.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
		logger.Printf("Intent store: sqlite (%s)", cfg.Store.SQLitePath)
		return internalapi.ScopedSlots{Codec: codec, Backend: db}, nil

	case appconfig.StorePostgres:
		logger.Printf("Connecting to PostgreSQL database %s@%s:%d", cfg.Database.Database, cfg.Database.Host, cfg.Database.Port)
		db, err := postgres.OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
		logger.Println("Intent store: postgres")
		return internalapi.ScopedSlots{Codec: codec, Backend: postgres.NewRepository(db)}, nil

	case appconfig.StoreRedis:
		client, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			TTL:      cfg.Store.TTL,
		})
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
		logger.Printf("Intent store: redis (%s)", cfg.Store.RedisAddr)
		return internalapi.ScopedSlots{Codec: codec, Backend: client}, nil

	case appconfig.StoreRestate:
		logger.Printf("Intent store: restate object %s via %s", restatestore.ServiceName, cfg.Restate.RuntimeURL)
		return internalapi.ScopedSlots{Codec: codec, Backend: restatestore.NewClient(cfg.Restate.RuntimeURL, nil)}, nil
	}
	logger.Println("Intent store: browser cookies")
	return internalapi.CookieSlots{Codec: codec}, nil
}

func newResolver(cfg appconfig.Config) reconcile.Resolver {
	return payment.NewResolver(payment.NewVerifier(cfg.Payment.VerifyURL, nil), payment.ResolverConfig{
		ProviderDomains: cfg.Payment.ProviderDomains,
		Timeout:         cfg.Payment.VerifyTimeout,
		Strict:          cfg.Payment.Strict,
	})
}

func newBackend(cfg appconfig.Config) reservation.Backend {
	return reservation.NewHTTPBackend(cfg.Backend.BaseURL, &http.Client{
		Timeout:   cfg.Backend.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

func newAPIServer(cfg appconfig.Config, slots internalapi.SlotProvider, resolver reconcile.Resolver, backend reservation.Backend, publisher events.Publisher) *internalapi.Server {
	return internalapi.NewServer(internalapi.Options{
		ProviderURL:          cfg.Payment.ProviderURL,
		SupportEmail:         cfg.Support.Email,
		SupportRatePerMinute: cfg.Support.RatePerMinute,
		Topic:                cfg.Kafka.ReservationsTopic,
	}, slots, resolver, backend, publisher)
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, api *internalapi.Server) {
	mux := http.NewServeMux()
	api.Register(mux)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           internalapi.Logging(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Printf("Reservation API listening on %s", displayAddr(cfg.HTTP.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("HTTP server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func buildRestateServer() *server.Restate {
	intentStore := restate.NewObject(restatestore.ServiceName).
		Handler("Save", restate.NewObjectHandler(restatestore.Save)).
		Handler("Load", restate.NewObjectSharedHandler(restatestore.Load)).
		Handler("Clear", restate.NewObjectHandler(restatestore.Clear)).
		Handler("RecordError", restate.NewObjectHandler(restatestore.RecordError)).
		Handler("TakeError", restate.NewObjectHandler(restatestore.TakeError))
	return server.NewRestate().Bind(intentStore)
}

// registerRestateServer serves the IntentStore object only when it backs the slot.
func registerRestateServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, srv *server.Restate) {
	if cfg.Store.Backend != appconfig.StoreRestate {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Println("Restate server listening on", cfg.Restate.ListenAddr)
			logger.Printf("  - %s: VIRTUAL OBJECT (keyed by client id)", restatestore.ServiceName)
			logger.Printf("  register with: restate deployments register http://%s", displayAddr(cfg.Restate.ListenAddr))
			go func() {
				defer close(done)
				if err := srv.Start(ctx, cfg.Restate.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
					logger.Printf("Restate server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func main() {
	_ = godotenv.Load()

	bao := secrets.OpenBaoConfigFromEnv()
	if bao.Enabled() {
		n, err := secrets.Bootstrap(context.Background(), bao)
		if err != nil {
			log.Fatalf("failed to load secrets from OpenBao: %v", err)
		}
		log.Printf("Loaded %d settings from OpenBao", n)
	}

	app := fx.New(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newPublisher,
			newCookieCodec,
			newSlotProvider,
			newResolver,
			newBackend,
			newAPIServer,
			buildRestateServer,
		),
		fx.Invoke(
			func(logger *log.Logger, cfg appconfig.Config) {
				logger.Printf("Starting %s (intent store: %s)...", cfg.ServiceName, cfg.Store.Backend)
			},
			setupTelemetry,
			registerWebServer,
			registerRestateServer,
		),
	)

	app.Run()
}
