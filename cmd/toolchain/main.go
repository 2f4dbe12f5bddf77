// Toolchain TUI Application
// Основная точка входа: оркестратор + калькулятор-сервис + монитор событий
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/toolchain/internal/ui"
	"github.com/ilkoid/toolchain/pkg/archive"
	"github.com/ilkoid/toolchain/pkg/calc"
	"github.com/ilkoid/toolchain/pkg/chain"
	"github.com/ilkoid/toolchain/pkg/config"
	"github.com/ilkoid/toolchain/pkg/events"
	"github.com/ilkoid/toolchain/pkg/inference"
	"github.com/ilkoid/toolchain/pkg/ledger"
	"github.com/ilkoid/toolchain/pkg/registry"
	"github.com/ilkoid/toolchain/pkg/transport"
	"github.com/ilkoid/toolchain/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 0. Инициализируем логгер
	if err := utils.InitLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer utils.SetupGracefulShutdown(cancel)()

	utils.Info("Application started", "version", "1.0")

	// 1. Конфигурация
	cfg, err := config.Load(*configPath)
	if err != nil {
		utils.Error("Failed to load config", "error", err, "path", *configPath)
		return err
	}
	utils.Info("Config loaded", "path", *configPath, "provider", cfg.Inference.GetDefaults().Provider)

	// 2. Tool-сервисы и роутер
	calcSvc, err := calc.NewService(cfg.Calc)
	if err != nil {
		return fmt.Errorf("calc service init failed: %w", err)
	}
	defer calcSvc.Close()

	router := transport.NewRouter()
	router.Attach(calcSvc)

	// 3. Реестр capabilities: сервисы регистрируются своими announcement'ами
	reg := registry.NewRegistry()
	reg.Register(calcSvc.ID(), calcSvc.Announce())

	// 4. Планировщик (mock или openai, по конфигу)
	planner, err := buildPlanner(cfg.Inference)
	if err != nil {
		return fmt.Errorf("planner init failed: %w", err)
	}

	// 5. Леджер задач + janitor retention-окна
	led := ledger.NewLedger()

	var sink ledger.ArchiveSink
	if cfg.Archive.Enabled {
		s, err := archive.New(cfg.Archive)
		if err != nil {
			return fmt.Errorf("archive init failed: %w", err)
		}
		sink = s
		utils.Info("Task archive enabled", "bucket", cfg.Archive.Bucket)
	}

	orchCfg := cfg.Orchestrator.GetDefaults()
	retention, janitorInterval, err := cfg.Orchestrator.Durations()
	if err != nil {
		return err
	}
	go led.RunJanitor(ctx, janitorInterval, retention, sink)

	// 6. Emitter событий (Port & Adapter)
	emitter := events.NewChanEmitter(orchCfg.EventBuffer)
	defer func() {
		// Сначала отменяем in-flight задачи, потом закрываем канал —
		// Close ждёт заблокированных Emit'ов (см. ChanEmitter.Close)
		cancel()
		emitter.Close()
	}()

	// 7. Оркестратор цепочек
	orch, err := chain.NewOrchestrator(led, reg, planner, router,
		chain.WithEmitter(emitter),
		chain.WithNotifier(chain.LogNotifier{}))
	if err != nil {
		return fmt.Errorf("orchestrator init failed: %w", err)
	}

	// Роутер доставляет коррелированные результаты обратно оркестратору
	router.SetDeliver(orch.OnStepResult)

	// 8. TUI монитор
	utils.Info("Starting TUI")

	p := tea.NewProgram(
		ui.InitialModel(ctx, orch, emitter.Subscribe()),
		// Без AltScreen - позволяет выделять текст мышкой и копировать в буфер обмена
	)

	if _, err := p.Run(); err != nil {
		utils.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	utils.Info("Application exited normally")
	return nil
}

// buildPlanner выбирает реализацию Planner'а по конфигу.
func buildPlanner(cfg config.InferenceConfig) (inference.Planner, error) {
	cfg = cfg.GetDefaults()

	switch cfg.Provider {
	case "openai":
		return inference.NewOpenAIPlanner(cfg)
	case "mock":
		return inference.NewMockPlanner(), nil
	default:
		return nil, fmt.Errorf("unknown inference provider '%s'", cfg.Provider)
	}
}
