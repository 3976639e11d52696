package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"collabdoc-server/broker"
	"collabdoc-server/broker/local"
	"collabdoc-server/broker/natsb"
	"collabdoc-server/broker/redisb"
	"collabdoc-server/collab"
	"collabdoc-server/config"
	"collabdoc-server/ephemeral"
	ephemeralmemory "collabdoc-server/ephemeral/memory"
	ephemeralredis "collabdoc-server/ephemeral/redis"
	"collabdoc-server/handlers/api/documents"
	"collabdoc-server/handlers/api/rooms"
	"collabdoc-server/handlers/websocket"
	"collabdoc-server/stores"
)

func setupRouter(
	store stores.Store,
	cache *collab.DocumentCache,
	registry *collab.RoomRegistry,
	presence *collab.PresenceStore,
	hub *websocket.Hub,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api/documents/{id}", func(r chi.Router) {
		r.Get("/", documents.HandleGet(store, cache))
		r.Put("/", documents.HandleUpdate(store, cache))
		r.Get("/chat", documents.HandleListChat(store))
	})

	r.Get("/api/rooms", rooms.HandleList(registry, presence))
	r.Get("/ws", websocket.Handler(hub))

	return r
}

func setupEphemeralStore(cfg *config.Config) (ephemeral.Store, *goredis.Client) {
	if cfg.RedisAddr == "" {
		logrus.Info("no REDIS_ADDR configured, using in-process ephemeral store")
		return ephemeralmemory.NewStore(), nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logrus.WithField("addr", cfg.RedisAddr).Info("using Redis ephemeral store")
	return ephemeralredis.NewStoreFromClient(client), client
}

func setupBroker(cfg *config.Config, redisClient *goredis.Client) broker.Broker {
	switch cfg.BrokerType {
	case "redis":
		if redisClient == nil {
			logrus.Fatal("BROKER_TYPE=redis requires REDIS_ADDR")
		}
		logrus.Info("using Redis broker")
		return redisb.NewBrokerFromClient(redisClient)
	case "nats":
		b, err := natsb.NewBroker(cfg.NatsURL)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to NATS")
		}
		logrus.WithField("url", cfg.NatsURL).Info("using NATS broker")
		return b
	default:
		logrus.Info("using in-process broker")
		return local.NewBroker()
	}
}

func waitForShutdown(writer *collab.DebouncedWriter, brk broker.Broker, eph ephemeral.Store) {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-sigC

	logrus.Info("shutting down")
	writer.Close()
	if err := brk.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close broker")
	}
	if err := eph.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close ephemeral store")
	}
	os.Exit(0)
}

func main() {
	cfg := config.Load()

	logLevel := flag.String("loglevel", cfg.LogLevel, "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", cfg.Addr, "Set the server listen address")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	store := stores.GetStore(cfg)
	eph, redisClient := setupEphemeralStore(cfg)
	brk := setupBroker(cfg, redisClient)

	registry := collab.NewRoomRegistry()
	presence := collab.NewPresenceStore(eph)
	cursors := collab.NewCursorStore(eph)
	cache := collab.NewDocumentCache(eph)
	writer := collab.NewDebouncedWriter(store, cache, cfg.DebounceInterval)

	hub := websocket.NewHub(registry, presence, cursors, cache, writer, brk, store, store)
	logrus.WithField("node_id", hub.NodeID()).Info("hub ready")

	r := setupRouter(store, cache, registry, presence, hub)

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddr, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(writer, brk, eph)
}
