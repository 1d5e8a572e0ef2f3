package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/archive"
	"main/internal/bus"
	"main/internal/engine"
	"main/internal/exchange"
	"main/internal/obs"
	"main/internal/oms"
	"main/internal/ops"
	"main/internal/position"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/wal"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	walDir := flag.String("wal-dir", "", "WAL directory (overrides config)")
	orderCount := flag.Int("order-count", 0, "Number of demo orders to run through the simulator")
	profileAddr := flag.String("profile-addr", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	loaded, err := loadConfig(*configPath, *walDir)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *profileAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "oms",
			ServerAddress:   *profileAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	if err := run(loaded, *orderCount); err != nil {
		log.Fatalf("oms failed: %v", err)
	}
}

func loadConfig(path, walDir string) (ops.Loaded, error) {
	var (
		loaded ops.Loaded
		err    error
	)
	if path != "" {
		loaded, err = ops.Load(path)
	} else {
		loaded, err = ops.Resolve(ops.FileConfig{
			Log:       ops.LogConfig{Dir: "testdata/wal"},
			Simulator: ops.SimulatorConfig{Enable: true, FillSlice: 2},
		})
	}
	if err != nil {
		return ops.Loaded{}, err
	}
	if walDir != "" {
		loaded.Log.Dir = walDir
	}
	return loaded, nil
}

func run(loaded ops.Loaded, orderCount int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := wal.Open(loaded.Log)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	store.Start(ctx)

	metrics := obs.NewMetrics()
	queue := bus.NewQueue(1024)
	publisher := bus.NewPublisher(queue, metrics)

	e := engine.New(
		engine.Config{CheckpointInterval: loaded.CheckpointInterval},
		store,
		oms.NewTable(),
		position.NewLedger(loaded.CostBasis),
		risk.NewEngine(loaded.Risk),
		metrics,
		publisher,
	)
	if err := e.Recover(); err != nil {
		_ = store.Close()
		return fmt.Errorf("recovery: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runConsumer(ctx, queue, loaded.Archive)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := e.Metrics()
				logs.Infof("metrics: records=%v checkpoints=%d dedup=%d unknown=%d drops=%d append avg=%s apply avg=%s",
					snap.RecordCounts, snap.Checkpoints, snap.DuplicateFills, snap.UnknownOrders,
					snap.QueueDrops, snap.AppendLatency.Avg, snap.ApplyLatency.Avg)
			}
		}
	}()

	sim := startSimulator(ctx, &wg, e, loaded, orderCount)

	select {
	case <-sys.Shutdown():
		logs.Info("shutdown signal received")
	case <-ctx.Done():
	}

	if sim != nil {
		_ = sim.Close()
	}
	queue.Close()
	cancel()
	wg.Wait()

	if err := e.Close(); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	logs.Info("oms stopped")
	return nil
}

// runConsumer drains the event bus. With the archive enabled, terminal orders
// and applied fills are persisted; otherwise events are only logged.
func runConsumer(ctx context.Context, queue *bus.Queue, cfg ops.ArchiveConfig) {
	var repo *archive.Archive
	if cfg.Enable {
		client, err := conn.New(conn.Option{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.DBName,
		})
		if err != nil {
			logs.Errorf("archive database unavailable, continuing without it: %+v", err)
		} else {
			defer client.Close()
			repo, err = archive.New(client.DB())
			if err != nil {
				logs.Errorf("archive migration failed, continuing without it: %+v", err)
				repo = nil
			}
		}
	}

	queue.Run(ctx, func(ev bus.Event) {
		switch ev.Kind {
		case bus.EventOrderUpdated:
			if ev.Order == nil {
				return
			}
			logs.Infof("order %s -> %s", ev.Order.ClientOrderID, ev.Order.Status)
			if repo != nil && ev.Order.Status.IsTerminal() {
				if err := repo.SaveOrder(*ev.Order); err != nil {
					logs.Errorf("archive order %s: %+v", ev.Order.ClientOrderID, err)
				}
			}
		case bus.EventFillApplied:
			if ev.Order == nil || ev.Report == nil {
				return
			}
			logs.Infof("fill %s qty %s @ %s", ev.Order.ClientOrderID, ev.Report.FillQty, ev.Report.FillPrice)
			if repo != nil {
				if err := repo.SaveFill(*ev.Order, *ev.Report); err != nil {
					logs.Errorf("archive fill %s: %+v", ev.Report.ExecutionID, err)
				}
			}
		case bus.EventPositionClosed:
			if ev.Position != nil {
				logs.Infof("position %s flat, realized pnl %s", ev.Position.Symbol, ev.Position.RealizedPnL)
			}
		}
	})
}

// startSimulator wires the built-in venue: demo orders go engine-first, then
// to the simulator, and its reports feed back through the engine.
func startSimulator(ctx context.Context, wg *sync.WaitGroup, e *engine.Engine, loaded ops.Loaded, orderCount int) *exchange.Simulator {
	if !loaded.Simulator.Enable {
		return nil
	}
	sim := exchange.NewSimulator(exchange.SimulatorConfig{
		Seed:      loaded.Simulator.Seed,
		FillSlice: loaded.Simulator.FillSlice,
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for rep := range sim.Reports() {
			if _, err := e.HandleExecutionReport(rep); err != nil {
				logs.Warnf("report for %s not applied: %+v", rep.ClientOrderID, err)
			}
		}
	}()

	if orderCount > 0 {
		symbol := loaded.Simulator.Symbol
		if symbol == "" {
			symbol = "BTCUSDT"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < orderCount; i++ {
				req := schema.PlaceOrderRequest{
					ClientOrderID: fmt.Sprintf("demo-%d-%d", time.Now().UnixNano(), i),
					Symbol:        symbol,
					Side:          schema.OrderSideBuy,
					Type:          schema.OrderTypeLimit,
					Price:         decimal.NewFromInt(100),
					Quantity:      decimal.NewFromInt(1),
					StrategyID:    schema.StrategySystem,
				}
				order, err := e.PlaceOrder(req)
				if err != nil {
					logs.Warnf("demo order rejected: %+v", err)
					continue
				}
				if err := sim.PlaceOrder(ctx, order); err != nil {
					logs.Warnf("simulator place failed: %+v", err)
					return
				}
			}
		}()
	}
	return sim
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
