// 文件: cmd/agent/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/itrader/agent/pkg/account"
	"github.com/itrader/agent/pkg/advertisement"
	"github.com/itrader/agent/pkg/chatautomation"
	"github.com/itrader/agent/pkg/chatmsg"
	"github.com/itrader/agent/pkg/config"
	"github.com/itrader/agent/pkg/email"
	"github.com/itrader/agent/pkg/eventbus"
	"github.com/itrader/agent/pkg/eventbus/wsgateway"
	"github.com/itrader/agent/pkg/idgen"
	"github.com/itrader/agent/pkg/orderdiscovery"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/platformd"
	"github.com/itrader/agent/pkg/platformx"
	"github.com/itrader/agent/pkg/ratelimit"
	"github.com/itrader/agent/pkg/receipt"
	"github.com/itrader/agent/pkg/reissue"
	"github.com/itrader/agent/pkg/release"
	"github.com/itrader/agent/pkg/scheduler"
	"github.com/itrader/agent/pkg/txn"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("🚀 Starting agent")

	cfgPath := os.Getenv("AGENT_CONFIG")
	if cfgPath == "" {
		cfgPath = "agent.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if nodeID, err := strconv.ParseInt(os.Getenv("AGENT_NODE_ID"), 10, 64); err == nil {
		if err := idgen.Init(nodeID); err != nil {
			log.Fatalf("init id generator: %v", err)
		}
	} else {
		idgen.Init(0)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	db, err := gorm.Open(mysql.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("database connection: %v", err)
	}
	if err := db.AutoMigrate(
		&account.Account{},
		&payout.Payout{},
		&advertisement.Advertisement{},
		&txn.Transaction{},
		&chatmsg.ChatMessage{},
		&receipt.Receipt{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Println("✅ Database ready")

	accountRepo := account.NewMySQLRepository(db)
	payoutRepo := payout.NewMySQLRepository(db)
	adRepo := advertisement.NewMySQLRepository(db)
	txnRepo := txn.NewMySQLRepository(db)
	chatRepo := chatmsg.NewMySQLRepository(db)
	receiptRepo := receipt.NewMySQLRepository(db)

	bus := eventbus.NewBus()
	wireUpEventBus(cfg, bus)
	publishProgress(bus, "database_ready", "database migrated and repositories ready")

	registry := account.NewRegistry(accountRepo)
	if err := wireUpAccounts(context.Background(), cfg, accountRepo, registry); err != nil {
		log.Fatalf("wire up accounts: %v", err)
	}
	log.Printf("✅ %d account(s) registered", len(registry.All()))
	publishProgress(bus, "accounts_registered", fmt.Sprintf("%d account(s) registered", len(registry.All())))

	limiter := ratelimit.New(cfg.Redis.Addr)

	intake := payout.NewIntake(payoutRepo, payout.AutoApprove, cfg.Manual())
	adService := advertisement.NewService(payoutRepo, adRepo, txnRepo, registry, advertisement.Pricing{
		UnitPrice:      cfg.Ad.UnitPrice,
		PaymentMethods: cfg.Ad.PaymentMethods,
		MaxSlots:       cfg.Ad.MaxSlots,
	}, bus)
	discovery := orderdiscovery.NewService(registry, txnRepo, adRepo, payoutRepo, chatRepo, limiter, bus)
	chat := chatautomation.NewService(registry, txnRepo, adRepo, chatRepo, payoutRepo, bus)
	releaseEngine := release.NewService(registry, txnRepo, adRepo, bus)
	reissueEngine := reissue.NewService(registry, txnRepo, adRepo, payoutRepo, chatRepo, bus)

	sched := scheduler.New(bus)
	bootSequence := registerTasks(sched, cfg, registry, intake, adService, discovery, chat, releaseEngine, reissueEngine, receiptRepo, payoutRepo, txnRepo, adRepo, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.RunBootSequence(ctx, bootSequence...); err != nil {
		log.Printf("boot sequence: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	log.Println("✅ Scheduler started")
	publishProgress(bus, "scheduler_started", "all tasks registered and running")

	hub := wsgateway.NewHub(bus)
	go hub.Run()
	if cfg.EventBus.WSAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", wsgateway.Handler(hub))
		mux.Handle("/admin/release", releaseMoneyHandler(releaseEngine))
		server := &http.Server{Addr: cfg.EventBus.WSAddr, Handler: mux}
		go func() {
			log.Printf("✅ WebSocket gateway listening on %s", cfg.EventBus.WSAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("websocket gateway: %v", err)
			}
		}()
		defer server.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutting down...")
	sched.Stop()
}

// wireUpAccounts builds one account.Handle per configured account: a
// Platform-D cookie-jar client and a Platform-X HMAC client, using
// config.EnvAccountCredential to pull secrets out of the environment
// rather than the TOML file. Missing accounts in the store are created.
func wireUpAccounts(ctx context.Context, cfg *config.Config, repo account.Repository, registry *account.Registry) error {
	for _, ac := range cfg.Accounts {
		existing, err := findOrCreateAccount(ctx, repo, ac)
		if err != nil {
			return fmt.Errorf("account %s: %w", ac.Tag, err)
		}

		dClient, err := platformd.NewHTTPClient(ac.PlatformDBaseURL)
		if err != nil {
			return fmt.Errorf("account %s: platform-d client: %w", ac.Tag, err)
		}
		if existing.SessionCookie != "" {
			if err := dClient.RestoreSession(existing.SessionCookie); err != nil {
				log.Printf("[Agent] restore session for %s: %v", ac.Tag, err)
			}
		}

		apiKey := config.EnvAccountCredential("platform_x", ac.Tag, "api_key")
		apiSecret := config.EnvAccountCredential("platform_x", ac.Tag, "api_secret")
		xClient := platformx.NewHTTPClient(ac.PlatformXBaseURL, apiKey, apiSecret)

		registry.Register(&account.Handle{
			AccountID: existing.ID,
			Tag:       existing.Tag,
			PlatformD: dClient,
			PlatformX: xClient,
			AdSlotCap: ac.AdSlotCapacity,

			PlatformXUserID: existing.PlatformXUserID,
		})
	}
	return nil
}

// releaseMoneyHandler is the admin "release money" surface: the one way
// to force a transaction to completed from a non-standard state such as
// dispute, bypassing the normal state-machine edges (spec.md §4.10).
// POST /admin/release?txn_id=<id>&reason=<text>
func releaseMoneyHandler(releaseEngine *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		txnID, err := strconv.ParseInt(r.URL.Query().Get("txn_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid txn_id", http.StatusBadRequest)
			return
		}
		reason := r.URL.Query().Get("reason")
		if reason == "" {
			reason = "admin force release"
		}
		if err := releaseEngine.ForceRelease(r.Context(), txnID, reason); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func findOrCreateAccount(ctx context.Context, repo account.Repository, ac config.AccountConfig) (*account.Account, error) {
	enabled, err := repo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range enabled {
		if a.Tag == ac.Tag {
			return a, nil
		}
	}
	a := account.New(idgen.Generate(), ac.Tag, ac.AdSlotCapacity)
	if err := repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// wireUpEventBus attaches the configured out-of-process backend (at most
// one, matching the operator's single choice of deployment topology) so
// every event published locally also reaches other instances.
// wireUpEventBus fans the local Bus out to the configured wire backend
// and, symmetrically, ingests that backend's stream back into the Bus,
// so a fleet of agent replicas shares one event stream: whichever
// instance publishes an event, every instance's wsgateway Hub (and its
// own connected operators) sees it.
func wireUpEventBus(cfg *config.Config, bus *eventbus.Bus) {
	switch cfg.EventBus.Backend {
	case "kafka":
		pub, err := eventbus.NewKafkaPublisher(cfg.EventBus.KafkaBrokers)
		if err != nil {
			log.Printf("[Agent] kafka event bus disabled: %v", err)
			return
		}
		pub.Forward(bus)
		log.Println("✅ Event bus forwarding to Kafka")

		if _, err := eventbus.NewKafkaIngress(cfg.EventBus.KafkaBrokers, cfg.EventBus.ConsumerGroup, bus); err != nil {
			log.Printf("[Agent] kafka event bus ingress disabled: %v", err)
			return
		}
		log.Println("✅ Event bus ingesting from Kafka")
	case "nats":
		pub, err := eventbus.NewNatsPublisher(cfg.EventBus.NatsURL)
		if err != nil {
			log.Printf("[Agent] nats event bus disabled: %v", err)
			return
		}
		pub.Forward(bus)
		log.Println("✅ Event bus forwarding to NATS")

		if _, err := eventbus.NewNatsIngress(cfg.EventBus.NatsURL, bus); err != nil {
			log.Printf("[Agent] nats event bus ingress disabled: %v", err)
			return
		}
		log.Println("✅ Event bus ingesting from NATS")
	}
}

// publishProgress emits an initialization_progress event for a boot
// milestone, so an operator UI connected before the scheduler starts
// can show startup progress instead of a blank screen.
func publishProgress(bus *eventbus.Bus, stage, message string) {
	bus.Publish(eventbus.New(eventbus.TypeInitializationProgress, eventbus.Room{}, map[string]any{
		"stage":   stage,
		"message": message,
	}, time.Now().UnixMilli()))
}

// registerTasks wires every scheduled component into the Task
// Scheduler and returns the init-time boot sequence: the one-shot
// "init" task followed by "payouts_sync", "work_acceptor" and
// "ad_creator" run once before the periodic ticker starts, closing the
// cold-start race where a tick could otherwise fire before account
// clients are ready.
func registerTasks(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	registry *account.Registry,
	intake *payout.Intake,
	adService *advertisement.Service,
	discovery *orderdiscovery.Service,
	chat *chatautomation.Service,
	releaseEngine *release.Service,
	reissueEngine *reissue.Service,
	receiptRepo receipt.Repository,
	payoutRepo payout.Repository,
	txnRepo txn.Repository,
	adRepo advertisement.Repository,
	bus *eventbus.Bus,
) []string {
	pollAllAccounts := func(ctx context.Context) error {
		for _, h := range registry.All() {
			if err := intake.PollAccount(ctx, h.PlatformD, h.AccountID); err != nil {
				log.Printf("[Agent] payout intake for %s: %v", h.Tag, err)
			}
		}
		return nil
	}

	must := func(err error) {
		if err != nil {
			log.Fatalf("register task: %v", err)
		}
	}

	must(sched.Register(scheduler.Task{
		ID:      "init",
		OneShot: true,
		Fn: func(ctx context.Context) error {
			registry.RefreshSessions(ctx, func(tag string) (string, string) {
				return config.EnvAccountCredential("platform_d", tag, "email"),
					config.EnvAccountCredential("platform_d", tag, "password")
			})
			registry.SyncPlatformXTime(ctx)
			return nil
		},
	}))
	must(sched.Register(scheduler.Task{
		ID:      "payouts_sync",
		OneShot: true,
		Fn:      pollAllAccounts,
	}))
	must(sched.Register(scheduler.Task{
		ID:       "work_acceptor",
		Interval: config.Interval(cfg.Orchestrator.Intervals.WorkAcceptor),
		Fn:       pollAllAccounts,
	}))
	must(sched.Register(scheduler.Task{
		ID:       "ad_creator",
		Interval: config.Interval(cfg.Orchestrator.Intervals.AdCreator),
		Fn:       adService.Tick,
	}))
	must(sched.Register(scheduler.Task{
		ID:       "order_checker",
		Interval: config.Interval(cfg.Orchestrator.Intervals.OrderChecker),
		Fn:       discovery.Tick,
	}))
	must(sched.Register(scheduler.Task{
		ID:       "chat_processor",
		Interval: config.Interval(cfg.Orchestrator.Intervals.ChatProcessor),
		Fn:       chat.Tick,
	}))
	must(sched.Register(scheduler.Task{
		ID:       "release_engine",
		Interval: config.Interval(cfg.Orchestrator.Intervals.OrderChecker),
		Fn:       releaseEngine.Tick,
	}))
	must(sched.Register(scheduler.Task{
		ID:       "reissue",
		Interval: config.Interval(cfg.Orchestrator.Intervals.OrderChecker),
		Fn:       reissueEngine.Tick,
	}))
	must(sched.Register(scheduler.Task{
		ID:       "gate_balance_setter",
		Interval: config.Interval(cfg.Orchestrator.Intervals.GateBalanceSetter),
		Fn: func(ctx context.Context) error {
			for _, h := range registry.All() {
				if err := h.PlatformD.SetBalance(ctx, cfg.Gate.DefaultBalance); err != nil {
					log.Printf("[Agent] set balance for %s: %v", h.Tag, err)
				}
			}
			return nil
		},
	}))

	emailClient := resolveEmailClient()
	if emailClient == nil {
		log.Println("[Agent] no email client wired in; receipt_processor and successer disabled")
		return []string{"init", "payouts_sync", "work_acceptor", "ad_creator"}
	}

	receiptService := receipt.NewService(emailClient, cfg.Email.Inbox, cfg.Email.TrustedDomains, resolvePDFTextExtractor(), receiptRepo, payoutRepo, txnRepo, adRepo, bus)
	must(sched.Register(scheduler.Task{
		ID:       "receipt_processor",
		Interval: config.Interval(cfg.Orchestrator.Intervals.ReceiptProcessor),
		Fn:       receiptService.Tick,
	}))
	must(sched.Register(scheduler.Task{
		ID:       "successer",
		Interval: config.Interval(cfg.Orchestrator.Intervals.Successer),
		Fn:       receiptService.MatchPending,
	}))

	return []string{"init", "payouts_sync", "work_acceptor", "ad_creator"}
}

// resolveEmailClient returns the inbox client for the deployment, or nil
// if none has been wired in. No vendor implementation ships with this
// module (genuinely out of scope, see pkg/email), so a real deployment
// links its own email.Client implementation in and this returns it; a
// nil result just disables the two tasks that depend on it.
func resolveEmailClient() email.Client {
	return nil
}

// resolvePDFTextExtractor returns the PDF-to-text function the Receipt
// Processor needs. PDF layout extraction is an external collaborator
// (see pkg/receipt.TextExtractor); no implementation ships here.
func resolvePDFTextExtractor() receipt.TextExtractor {
	return func(pdfBytes []byte) (string, error) {
		return "", fmt.Errorf("agent: no PDF text extractor configured")
	}
}
