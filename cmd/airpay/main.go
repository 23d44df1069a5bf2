package main

import (
	"context"
	"database/sql"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gopkg.in/reform.v1"
	"gopkg.in/reform.v1/dialects/postgresql"

	"github.com/airpayhq/airpay/engine"
	"github.com/airpayhq/airpay/engine/store"
	"github.com/airpayhq/airpay/httpapi"
	"github.com/airpayhq/airpay/httputils"
	"github.com/airpayhq/airpay/provider/token"
	"github.com/airpayhq/airpay/services/config"
	"github.com/airpayhq/airpay/services/invoices"
	"github.com/airpayhq/airpay/services/items"
	"github.com/airpayhq/airpay/services/payments"
)

var (
	VERSION = "dev"

	httpAddrF   = flag.String("http-addr", "127.0.0.1:10021", "HTTP API listen address.")
	debugAddrF  = flag.String("debug-addr", "127.0.0.1:10022", "Debug (metrics, healthz) listen address.")
	grpcAddrF   = flag.String("grpc-addr", "127.0.0.1:10023", "gRPC health listen address.")
	productionF = flag.Bool("production", false, "Production logger profile.")
	debugF      = flag.Bool("debug", false, "Debug level logs.")
)

// Envs is the environment half of the daemon configuration. Listen
// addresses come from flags, credentials and backends from here.
type Envs struct {
	PGConn  string   `env:"AIRPAY_PG_CONN"`
	NATSUrl string   `env:"AIRPAY_NATS_URL"`
	Mints   []string `env:"AIRPAY_MINTS" envSeparator:","`
}

func main() {
	defaultLogger("INFO")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	zap.L().Info("Starting...", zap.String("version", VERSION))
	defer func() { zap.L().Info("Done.") }()

	var syncLogger func() error
	if *productionF {
		syncLogger = productionLogger(*debugF)
	} else {
		syncLogger = developLogger(*debugF)
	}
	defer syncLogger()
	handleTerm(cancel)

	var envs Envs
	if err := env.Parse(&envs); err != nil {
		zap.L().Panic("Failed to parse environment.", zap.Error(err))
	}

	var records store.Store
	if envs.PGConn != "" {
		sqlDB := setupPostgres(envs.PGConn, 0, 5, 5)
		defer sqlDB.Close()
		db := reform.NewDB(sqlDB, postgresql.Dialect, reform.NewPrintfLogger(zap.L().Sugar().Debugf))
		records = store.NewPostgres(db)
	} else {
		zap.L().Warn("No AIRPAY_PG_CONN set, using in-memory record store.")
		records = store.NewMemory()
	}

	tokens := token.NewMemoryEngine()
	for _, m := range envs.Mints {
		addr, decimals, err := parseMint(m)
		if err != nil {
			zap.L().Panic("Bad AIRPAY_MINTS entry.", zap.String("entry", m), zap.Error(err))
		}
		if err := tokens.RegisterMint(addr, decimals); err != nil {
			zap.L().Panic("Failed to register mint.", zap.Stringer("mint", addr), zap.Error(err))
		}
		zap.L().Info("Mint registered.", zap.Stringer("mint", addr), zap.Uint8("decimals", decimals))
	}

	var nc *nats.EncodedConn
	if envs.NATSUrl != "" {
		conn, err := nats.Connect(
			envs.NATSUrl,
			nats.MaxReconnects(-1),
			nats.RetryOnFailedConnect(true),
		)
		if err != nil {
			zap.L().Panic("Failed to connect to NATS.", zap.Error(err))
		}
		defer conn.Drain()
		nc, err = nats.NewEncodedConn(conn, nats.JSON_ENCODER)
		if err != nil {
			zap.L().Panic("Failed to wrap NATS connection.", zap.Error(err))
		}
		zap.L().Info("NATS - Connected!")
	}

	server := httpapi.NewServer(
		config.NewService(records, tokens),
		invoices.NewService(records, tokens),
		items.NewService(records),
		payments.NewService(records, tokens, nc),
	)

	var wg sync.WaitGroup

	httpServer := &http.Server{Addr: *httpAddrF, Handler: server.Router()}
	wg.Add(1)
	go func() {
		defer wg.Done()
		zap.L().Info("HTTP API listening.", zap.String("address", *httpAddrF))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Error("HTTP API serve error.", zap.Error(err))
		}
	}()

	debugServer := &http.Server{Addr: *debugAddrF, Handler: httputils.DebugMux()}
	wg.Add(1)
	go func() {
		defer wg.Done()
		zap.L().Info("Debug mux listening.", zap.String("address", *debugAddrF))
		if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Error("Debug mux serve error.", zap.Error(err))
		}
	}()

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, health.NewServer())
	lis, err := net.Listen("tcp", *grpcAddrF)
	if err != nil {
		zap.L().Panic("Failed to listen.", zap.String("address", *grpcAddrF), zap.Error(err))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		zap.L().Info("gRPC health listening.", zap.String("address", *grpcAddrF))
		if err := grpcServer.Serve(lis); err != nil {
			zap.L().Error("gRPC serve error.", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP API shutdown error.", zap.Error(err))
	}
	if err := debugServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Debug mux shutdown error.", zap.Error(err))
	}
	grpcServer.GracefulStop()
	wg.Wait()
}

// parseMint parses "base58address:decimals".
func parseMint(s string) (engine.Address, uint8, error) {
	var addr engine.Address
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return addr, 0, errBadMint
	}
	addr, err := engine.ParseAddress(s[:i])
	if err != nil {
		return addr, 0, err
	}
	decimals, err := strconv.ParseUint(s[i+1:], 10, 8)
	if err != nil {
		return addr, 0, err
	}
	return addr, uint8(decimals), nil
}

var errBadMint = errors.New("want <address>:<decimals>")

// Configure configure zap logger.
//
// Available values of level:
// - DEBUG
// - INFO
// - WARN
// - ERROR
// - DPANIC
// - PANIC
// - FATAL
func defaultLogger(levelSet string) {
	level := zapcore.InfoLevel
	if err := level.Set(levelSet); err != nil {
		panic(err)
	}
	config := zap.NewDevelopmentConfig()
	config.Level.SetLevel(level)
	l, err := config.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l.Named("stdlog"))
}

func developLogger(debug bool) func() error {
	zap.L().Sync()

	config := zap.NewDevelopmentConfig()
	config.Development = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	if debug {
		config.Level.SetLevel(zap.DebugLevel)
	} else {
		config.Level.SetLevel(zap.InfoLevel)
	}

	l, err := config.Build(
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l.Named("stdlog"))

	return l.Sync
}

func productionLogger(debug bool) func() error {
	zap.L().Sync()

	config := zap.NewProductionConfig()
	config.Development = false
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	if debug {
		config.Level.SetLevel(zap.DebugLevel)
	} else {
		config.Level.SetLevel(zap.InfoLevel)
	}

	l, err := config.Build(
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l.Named("stdlog"))

	return l.Sync
}

func handleTerm(cancel context.CancelFunc) {
	// handle termination signals: first one gracefully, force exit on the second one
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, unix.SIGTERM, unix.SIGINT)
	go func() {
		s := <-signals
		zap.L().Warn("Shutting down.", zap.String("signal", unix.SignalName(s.(unix.Signal))))
		cancel()

		s = <-signals
		zap.L().Panic("Exiting!", zap.String("signal", unix.SignalName(s.(unix.Signal))))
	}()
}

func setupPostgres(conn string, maxLifetime time.Duration, maxOpen, maxIdle int) *sql.DB {
	sqlDB, err := sql.Open("postgres", conn)
	if err != nil {
		zap.L().Panic("Failed to connect to PostgreSQL.", zap.Error(err))
	}
	sqlDB.SetConnMaxLifetime(maxLifetime)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	if err = sqlDB.Ping(); err != nil {
		zap.L().Panic("Failed to connect ping PostgreSQL.", zap.Error(err))
	}
	zap.L().Info("Postgres - Connected!")

	return sqlDB
}
