// Package main is the entry point of the Center broker. It loads the configuration (LoadConfig), picks the
// certificate source (certfs directory or Redis), builds the certificate store and the broker core
// (service.NewCore), serves the duplex Connect stream (grpcconn) with gRPC health and reflection on
// GRPCPort and, when HTTPPort is set, the HTTP gateway (handlers). On SIGINT/SIGTERM it stops both
// servers gracefully with a 5s bound.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"center/adapters/certfs"
	"center/adapters/grpcconn"
	"center/adapters/myredis"
	"center/handlers"
	"center/interfaces"
	"center/service"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.WithPrefix(logger, "ts", log.DefaultTimestampUTC)
	logger = log.WithPrefix(logger, "caller", log.DefaultCaller)

	config, err := LoadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		level.Error(logger).Log("msg", "Failed to load configuration", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log(
		"msg", "Configuration loaded",
		"service_port_grpc", config.GRPCPort,
		"service_port_http", config.HTTPPort,
		"cert_store", config.CertStore,
		"cert_path", config.CertPath,
		"sign_method", config.SignMethod,
	)

	fileSource := certfs.NewSource(config.CertPath)

	if config.ImportCerts {
		redisClient := mustRedis(logger, config.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		n, err := importCertificates(ctx, fileSource, myredis.NewCertSource(redisClient))
		cancel()
		_ = redisClient.Close()
		if err != nil {
			level.Error(logger).Log("msg", "Certificate import failed", "imported", n, "err", err)
			os.Exit(1)
		}
		level.Info(logger).Log("msg", "Certificates imported", "count", n)
		return
	}

	var source interfaces.CertSource = fileSource
	if config.CertStore == certStoreRedis {
		redisClient := mustRedis(logger, config.RedisAddr)
		defer redisClient.Close()
		source = myredis.NewCertSource(redisClient)
	}

	timeProvider := service.NewTimeProvider(func() time.Time { return time.Now().UTC() })
	key, err := service.LoadPrivateKey(config.KeyPath)
	if err != nil {
		// Handshakes are refused until a key is in place.
		level.Error(logger).Log("msg", "Private key not loaded", "path", config.KeyPath, "err", err)
	}
	certs := service.NewCertificateStore(source, key, config.SignMethod, config.SignatureMaxSkew, timeProvider, logger)

	core := service.NewCore(certs, service.CoreConfig{
		AuthTick:         config.AuthTick,
		AuthTimeoutTicks: config.AuthTimeoutTicks,
		CallTimeout:      config.CallTimeout,
	}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Run(ctx)

	var grpcServer *grpc.Server
	var healthServer *health.Server
	{
		grpcServer = grpc.NewServer(grpc.ChainStreamInterceptor(service.CenterErrorToGRPCStreamInterceptor(logger)))
		grpcconn.NewServer(core, logger).Register(grpcServer)

		healthServer = health.NewServer()
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

		reflection.Register(grpcServer)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", config.GRPCPort))
	if err != nil {
		level.Error(logger).Log("msg", "Failed to listen", "err", err)
		os.Exit(1)
	}
	go func() {
		level.Info(logger).Log("msg", "Starting gRPC server", "addr", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			level.Error(logger).Log("msg", "gRPC server error", "err", err)
		}
	}()

	var e *echo.Echo
	if config.HTTPPort > 0 {
		e, err = newHTTPGateway(core, config.JWTSecret, timeProvider, logger)
		if err != nil {
			level.Error(logger).Log("msg", "Failed to build HTTP gateway", "err", err)
			os.Exit(1)
		}
		go func() {
			addr := fmt.Sprintf(":%d", config.HTTPPort)
			level.Info(logger).Log("msg", "Starting HTTP server", "addr", addr)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Error(logger).Log("msg", "HTTP server error", "err", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	level.Info(logger).Log("msg", "Shutting down...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if e != nil {
		if err := e.Shutdown(shutdownCtx); err != nil {
			level.Error(logger).Log("msg", "Error during HTTP shutdown", "err", err)
		}
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	level.Info(logger).Log("msg", "Server stopped")
}

// mustRedis connects to Redis or exits.
func mustRedis(logger log.Logger, addr string) redis.UniversalClient {
	client, err := myredis.NewRedisUniversalClient(addr, myredis.WithTimeouts(3*time.Second))
	if err != nil {
		level.Error(logger).Log("msg", "Failed to create Redis client", "err", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		level.Error(logger).Log("msg", "Failed to connect to Redis", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "Connected to Redis")
	return client
}

// newHTTPGateway builds the echo server of the HTTP gateway. With a non-empty secret every /v1 route
// requires a bearer JWT.
func newHTTPGateway(broker interfaces.Broker, secret []byte, tp interfaces.TimeProvider, logger log.Logger) (*echo.Echo, error) {
	doc, err := handlers.LoadSwagger()
	if err != nil {
		return nil, err
	}
	validate, err := handlers.RequestValidator(doc)
	if err != nil {
		return nil, err
	}
	var m []echo.MiddlewareFunc
	if len(secret) > 0 {
		m = append(m, handlers.BearerAuth(service.NewJWTValidator(secret, tp)))
	}
	m = append(m, validate)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	service.RegisterErrorHandler(e, logger)
	handlers.RegisterHandlers(e, handlers.NewHTTPServer(broker, logger), m...)
	return e, nil
}
