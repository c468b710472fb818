package bootstrap

import (
	"context"
	"fmt"

	"wiki-console-be/internal/config"
	"wiki-console-be/internal/controller"
	"wiki-console-be/internal/pkg/logger"
	"wiki-console-be/internal/repository/contract"
	"wiki-console-be/internal/repository/implementation"
	"wiki-console-be/internal/repository/kbstore"
	"wiki-console-be/internal/repository/memory"
	"wiki-console-be/internal/service"
	"wiki-console-be/internal/websocket"
	pkgEvents "wiki-console-be/pkg/events"
	pktNats "wiki-console-be/pkg/nats"
	"wiki-console-be/pkg/settings"
	"wiki-console-be/pkg/wikiapi"
	"wiki-console-be/pkg/wizard"
	wizardEvents "wiki-console-be/pkg/wizard/events"
	"wiki-console-be/pkg/wizard/steps"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	WizardController controller.IWizardController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires the console. db may be nil, which disables the audit
// trail; Redis and NATS outages degrade to in-memory storage and no events.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c := &Container{Logger: sysLogger}

	landingDefaults := settings.LandingDefaults()
	if cfg.Wizard.LandingDefaultsFile != "" {
		doc, err := settings.LoadLandingDefaults(cfg.Wizard.LandingDefaultsFile)
		if err != nil {
			return nil, fmt.Errorf("landing defaults: %w", err)
		}
		landingDefaults = doc
	}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	var bus pkgEvents.Publisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS, wizard events disabled", map[string]interface{}{"error": err.Error()})
	} else {
		bus = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}

	// 3. Storage
	var kbStore kbstore.Store
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb = redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to connect to Redis, kb ids kept in memory", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		rdb = nil
		kbStore = kbstore.NewMemoryStore(0)
	} else {
		kbStore = kbstore.NewRedisStore(rdb, 0)
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	var audit contract.OnboardingEventRepository
	if db != nil {
		audit = implementation.NewOnboardingEventRepository(db)
	}

	// 4. Wizard
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run(context.Background())

	api := wikiapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout, sysLogger)
	deps := steps.Dependencies{
		Models:         api,
		KnowledgeBases: api,
		Nodes:          api,
		Decorator:      wizard.NewDecorator(api, landingDefaults, cfg.Wizard.AppType, sysLogger),
		Publisher:      wizard.NewPublishCoordinator(api, cfg.Wizard.ReleaseMessage, sysLogger),
	}

	wizardService, err := service.NewWizardService(
		service.WizardServiceConfig{
			StepKeys:   steps.ParseKeys(cfg.Wizard.Steps),
			ResetDelay: cfg.Wizard.ResetDelay,
			SessionTTL: cfg.Wizard.SessionTTL,
		},
		deps,
		memory.NewSessionRepository(cfg.Wizard.SessionTTL),
		kbStore,
		api,
		wizardEvents.NewNatsPublisher(bus, sysLogger),
		audit,
		wsHub,
		service.NewPublisherService(cfg.Wizard.KbEventsTopic, pubSub),
		sysLogger,
	)
	if err != nil {
		return nil, err
	}

	c.WizardController = controller.NewWizardController(wizardService, wsHub)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Wizard.KbEventsTopic, wizardService, sysLogger)
	c.WebSocketHub = wsHub
	return c, nil
}

// Close releases broker and cache connections.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.Logger.Sync()
}
