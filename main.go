package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"messenger-core/internal/auth"
	"messenger-core/internal/bus"
	"messenger-core/internal/config"
	"messenger-core/internal/db"
	grpcserver "messenger-core/internal/grpc"
	"messenger-core/internal/handlers"
	"messenger-core/internal/logging"
	"messenger-core/internal/middleware"
	"messenger-core/internal/observability"
	"messenger-core/internal/rabbitmq"
	"messenger-core/internal/repositories"
	"messenger-core/internal/services"
	"messenger-core/internal/telemetry"
	"messenger-core/internal/workerpool"
	"messenger-core/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	database, err := db.Connect(ctx, cfg.DBDSN, log)
	if err != nil {
		return err
	}
	defer database.Close()
	store := repositories.NewStore(database)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, log)

	hub := bus.New(log)
	g, ctx := errgroup.WithContext(ctx)
	if cfg.FanoutAMQPURL != "" {
		relay, err := bus.NewAMQPRelay(cfg.FanoutAMQPURL, cfg.FanoutExchange, hub, log)
		if err != nil {
			return err
		}
		defer relay.Close()
		hub.SetRelay(relay)
		g.Go(func() error { return relay.Run(ctx) })
	} else {
		log.Info("fanout relay disabled, delivering to local connections only")
	}

	messages := services.NewMessageService(store, hub, log)
	invites := services.NewInvitationService(store, hub, log)
	api := handlers.API{
		Rooms:       handlers.NewRoomHandler(services.NewRoomService(store, hub, log), invites),
		Messages:    handlers.NewMessageHandler(messages),
		Invitations: handlers.NewInvitationHandler(invites),
		Devices:     handlers.NewDeviceHandler(services.NewDeviceCustodian(store, audit, log)),
		Folders:     handlers.NewFolderHandler(services.NewFolderService(store, log)),
	}

	tokens := auth.NewTokenParser(cfg.JWTSecret)
	directory := store.Repos().Directory
	gateway := ws.NewGateway(ws.Deps{
		Tokens:   tokens,
		Users:    directory,
		Members:  services.NewMembership(store, log),
		Messages: messages,
		Hub:      hub,
		Pool:     workerpool.New(cfg.StoreWorkers),
		Config:   cfg.WS,
		Log:      log,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.RequestLogger(log))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/chat/:room_id", gateway.HandleChat)
	router.GET("/ws/notifications", gateway.HandleNotifications)

	authn := middleware.AuthMiddleware(tokens, directory)
	api.Register(router, authn)
	handlers.NewDebugHandler(audit).Register(router, authn, cfg.DebugRoutes)

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	grpcSrv := grpcserver.NewServer(cfg.ServiceName, log)

	g.Go(func() error {
		log.WithField("addr", httpSrv.Addr).Info("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return err
		}
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.Stop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
