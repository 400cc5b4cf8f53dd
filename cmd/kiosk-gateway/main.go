package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/config"
	"github.com/BrandonDHaskell/kioskauth/internal/db"
	"github.com/BrandonDHaskell/kioskauth/internal/grpcapi"
	"github.com/BrandonDHaskell/kioskauth/internal/httpapi"
	"github.com/BrandonDHaskell/kioskauth/internal/hub"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/service"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store/memory"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store/sqlite"
)

type stores struct {
	directory store.MemberDirectory
	audit     store.AuditSink
	devices   store.DeviceStore
	close     func()
}

func openStores(ctx context.Context, cfg config.Gateway, logger *log.Logger) (stores, error) {
	if cfg.Store == "memory" {
		logger.Printf("using in-memory stores; member directory is empty")
		return stores{
			directory: memory.NewMemberDirectory(),
			audit:     memory.NewAuditSink(),
			devices:   memory.NewDeviceStore(),
			close:     func() {},
		}, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		return stores{}, err
	}
	writer := db.NewWorker(conn)
	logger.Printf("sqlite store at %s", cfg.DBPath)

	return stores{
		directory: sqlite.NewMemberDirectory(conn),
		audit:     sqlite.NewAuditSink(conn, writer),
		devices:   sqlite.NewDeviceStore(conn, writer),
		close:     closeDB(conn, writer),
	}, nil
}

func closeDB(conn *sql.DB, writer *db.Worker) func() {
	return func() {
		writer.Close()
		_ = conn.Close()
	}
}

func main() {
	logger := log.New(os.Stdout, "kiosk-gateway ", log.LstdFlags|log.LUTC)

	cfg, err := config.GatewayFromEnv()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}
	defer st.close()

	// Services
	h := hub.New(hub.Config{ProbeInterval: cfg.LivenessInterval()}, logger)
	registry := service.NewDeviceRegistry(st.devices)
	audit := service.NewAuditRecorder(st.audit, logger)
	admins := store.NewAdminAllowList(cfg.AdminTagUIDs)

	ingest := service.NewIngestService(service.IngestDependencies{
		Directory:   st.directory,
		Registry:    registry,
		Audit:       audit,
		Broadcaster: h,
		Policy: service.IngestPolicy{
			Production:    cfg.Production(),
			TestUIDPrefix: cfg.TestUIDPrefix,
			Admins:        admins,
		},
		Logger: logger,
	})
	logger.Printf("env=%s admin_tags=%d", cfg.Env, admins.Len())

	h.Start(ctx)

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           cfg.HTTPAddr,
		Ingest:         ingest,
		Registry:       registry,
		Hub:            h,
		AllowedOrigins: cfg.WSAllowedOrigins,
		IngestRate:     cfg.IngestRate,
		IngestBurst:    cfg.IngestBurst,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	// gRPC mirror
	var grpcSrv *grpcapi.Server
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(grpcapi.Dependencies{Logger: logger, Addr: cfg.GRPCAddr, Hub: h})
		go func() {
			logger.Printf("grpc listening on %s", cfg.GRPCAddr)
			if err := grpcSrv.Start(); err != nil {
				logger.Printf("grpc server error: %v", err)
				stop()
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Closing subscribers first lets the websocket and gRPC handlers return.
	h.Stop()
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	_ = srv.Shutdown(shutdownCtx)
	audit.Wait()
}
