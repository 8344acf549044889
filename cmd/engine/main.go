package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/daehwan-kim/tradeflow/params"
	"github.com/daehwan-kim/tradeflow/pkg/api"
	"github.com/daehwan-kim/tradeflow/pkg/brokerage"
	"github.com/daehwan-kim/tradeflow/pkg/engine"
	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
	"github.com/daehwan-kim/tradeflow/pkg/securities"
	"github.com/daehwan-kim/tradeflow/pkg/storage"
	"github.com/daehwan-kim/tradeflow/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logFile := cfg.Node.LogFile
	if logFile == "" {
		logFile = filepath.Join(cfg.Node.DataDir, "engine.log")
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("logger initialized", zap.String("log_file", logFile))

	// ---- Securities & portfolio ----
	registry := securities.NewRegistry()
	spy := securities.NewSecurity("SPY", "USD")
	spy.SetMarketPrice(decimal.NewFromInt(450))
	registry.Add(spy)

	port := portfolio.NewPortfolio()
	port.CashBook.Set(portfolio.Cash{
		Symbol:         "USD",
		Amount:         decimal.NewFromInt(100000),
		ConversionRate: decimal.NewFromInt(1),
	})

	// ---- Brokerage (paper venue) ----
	broker := brokerage.NewPaperBrokerage(registry, port.CashBook, logger)
	defer broker.Close()

	// ---- Algorithm & transaction handler ----
	algo := engine.NewBasicAlgorithm(port, brokerage.DefaultModel{}, registry)
	algo.SetLiveMode(cfg.Engine.LiveMode)

	journal, err := storage.NewOrderJournal(filepath.Join(cfg.Node.DataDir, "orders"))
	if err != nil {
		logger.Fatal("order journal open failed", zap.Error(err))
	}
	defer journal.Close()

	hub := api.NewHub(logger)
	builder := portfolio.NewTradeBuilder()

	handler := engine.NewTransactionHandler(logger, algo, broker, engine.Config{
		RetentionCap:     cfg.Engine.RetentionCap,
		SyncDrainTimeout: cfg.Engine.SyncDrainTimeout,
		ExitTimeout:      cfg.Engine.ExitTimeout,
		FillQuiescence:   cfg.Engine.FillQuiescence,
		CashSyncCutoff:   cfg.Engine.CashSyncCutoff,
	}, engine.WithJournal(journal), engine.WithResultSink(hub))
	handler.SetTradeRecorder(builder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := handler.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("transaction handler exited", zap.Error(err))
		}
	}()

	// ---- Simulation loop: tick the venue and run the synchronous pass ----
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				broker.Tick()
				handler.ProcessSynchronousEvents()
			case <-ctx.Done():
				return
			}
		}
	}()

	// ---- API ----
	server := api.NewServer(handler, port, hub, logger)
	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()

	// demo order so a fresh node shows lifecycle activity immediately
	request := orders.NewSubmitOrderRequest(handler.NextOrderID(), "SPY", 10, orders.OrderKindMarket, time.Now())
	request.Tag = "bootstrap probe order"
	handler.AddOrder(request)

	// ---- Shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	handler.Exit()
	cancel()
}
