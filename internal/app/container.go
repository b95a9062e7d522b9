package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	chatCommands "github.com/felixgeelhaar/caravan/internal/chat/application/commands"
	chatQueries "github.com/felixgeelhaar/caravan/internal/chat/application/queries"
	chatPersistence "github.com/felixgeelhaar/caravan/internal/chat/infrastructure/persistence"
	expenseCommands "github.com/felixgeelhaar/caravan/internal/expenses/application/commands"
	expenseQueries "github.com/felixgeelhaar/caravan/internal/expenses/application/queries"
	expensePersistence "github.com/felixgeelhaar/caravan/internal/expenses/infrastructure/persistence"
	"github.com/felixgeelhaar/caravan/internal/files"
	"github.com/felixgeelhaar/caravan/internal/identity/application/auth"
	identityDomain "github.com/felixgeelhaar/caravan/internal/identity/domain"
	identityPersistence "github.com/felixgeelhaar/caravan/internal/identity/infrastructure/persistence"
	"github.com/felixgeelhaar/caravan/internal/identity/infrastructure/revocation"
	"github.com/felixgeelhaar/caravan/internal/identity/infrastructure/token"
	notificationCommands "github.com/felixgeelhaar/caravan/internal/notifications/application/commands"
	notificationQueries "github.com/felixgeelhaar/caravan/internal/notifications/application/queries"
	notificationSubs "github.com/felixgeelhaar/caravan/internal/notifications/application/subscribers"
	notificationPersistence "github.com/felixgeelhaar/caravan/internal/notifications/infrastructure/persistence"
	planCommands "github.com/felixgeelhaar/caravan/internal/planning/application/commands"
	planQueries "github.com/felixgeelhaar/caravan/internal/planning/application/queries"
	"github.com/felixgeelhaar/caravan/internal/planning/application/workers"
	planningDomain "github.com/felixgeelhaar/caravan/internal/planning/domain"
	planPersistence "github.com/felixgeelhaar/caravan/internal/planning/infrastructure/persistence"
	pollCommands "github.com/felixgeelhaar/caravan/internal/polls/application/commands"
	pollQueries "github.com/felixgeelhaar/caravan/internal/polls/application/queries"
	pollPersistence "github.com/felixgeelhaar/caravan/internal/polls/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/caravan/pkg/config"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Infrastructure
	DB          database.Connection
	RedisClient *redis.Client
	UnitOfWork  sharedApplication.UnitOfWork
	OutboxRepo  outbox.Repository

	// Events. Bus is set in local mode, where it is also the Publisher.
	Publisher       eventbus.Publisher
	Bus             *eventbus.InProcessBus
	OutboxProcessor *outbox.Processor
	consumers       []*eventbus.RabbitMQConsumer

	// Identity
	Auth      *auth.Service
	Directory *auth.Directory

	// Planning
	PlanAccess        *planQueries.PlanAccessHandler
	CreatePlan        *planCommands.CreatePlanHandler
	Apply             *planCommands.ApplyHandler
	CancelApplication *planCommands.CancelApplicationHandler
	DecideApplication *planCommands.DecideApplicationHandler
	Invite            *planCommands.InviteHandler
	DecideInvitation  *planCommands.DecideInvitationHandler
	ClosePlan         *planCommands.ClosePlanHandler
	StartPlan         *planCommands.StartPlanHandler
	CompletePlan      *planCommands.CompletePlanHandler
	DiscoverPlans     *planQueries.DiscoverPlansHandler
	MyPlans           *planQueries.MyPlansHandler
	GetPlan           *planQueries.GetPlanHandler
	CheckCurrent      *planQueries.CheckCurrentHandler
	Scheduler         *workers.LifecycleScheduler

	// Chat
	SendMessage *chatCommands.SendMessageHandler
	ChatHistory *chatQueries.HistoryHandler
	GetMessage  *chatQueries.GetMessageHandler

	// Polls
	CreatePoll *pollCommands.CreatePollHandler
	Vote       *pollCommands.VoteHandler
	ClosePoll  *pollCommands.ClosePollHandler
	ListPolls  *pollQueries.ListPollsHandler

	// Expenses
	CreateExpense  *expenseCommands.CreateExpenseHandler
	MarkPaid       *expenseCommands.MarkPaidHandler
	ListExpenses   *expenseQueries.ListExpensesHandler
	ExpenseSummary *expenseQueries.SummaryHandler

	// Notifications
	NotificationSubscriber *notificationSubs.NotificationSubscriber
	ListNotifications      *notificationQueries.ListNotificationsHandler
	MarkNotificationRead   *notificationCommands.MarkReadHandler

	Files *files.Store
}

// NewContainer creates and wires all dependencies. An empty DATABASE_URL
// selects SQLite; an empty RABBITMQ_URL keeps events in process.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	if err := c.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.initRevocation(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initEvents(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initHandlers(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.Driver(c.Config.DatabaseDriver),
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	applied, err := migrations.Run(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.DB = conn
	c.UnitOfWork = database.NewUnitOfWork(conn)
	c.OutboxRepo = outbox.NewSQLRepository(conn)
	c.Health.Register("database", observability.PingChecker("database", true, conn.Ping))
	c.Logger.Info("connected to database", "driver", conn.Driver(), "migrations_applied", len(applied))
	return nil
}

// initRevocation prefers Redis so that a logout holds across API
// instances. Development falls back to memory when Redis is unavailable.
func (c *Container) initRevocation(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err == nil {
		client := redis.NewClient(opt)
		if err = client.Ping(ctx).Err(); err == nil {
			c.RedisClient = client
			c.Health.Register("redis", observability.PingChecker("redis", false, func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}))
			c.Logger.Info("connected to Redis")
			return nil
		}
		_ = client.Close()
	}
	if !c.Config.IsDevelopment() {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	c.Logger.Warn("Redis not available, token revocation will use in-memory fallback", "error", err)
	return nil
}

func (c *Container) initEvents() error {
	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
		if err == nil {
			c.Publisher = publisher
			c.Health.Register("rabbitmq", observability.PingChecker("rabbitmq", false, publisher.Ping))
		} else if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		} else {
			c.Logger.Warn("RabbitMQ not available, dispatching events in process", "error", err)
		}
	}
	if c.Publisher == nil {
		c.Bus = eventbus.NewInProcessBus(c.Logger)
		c.Publisher = c.Bus
	}

	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.Publisher, outbox.ProcessorConfig{
		PollInterval:     c.Config.OutboxPollInterval,
		BatchSize:        c.Config.OutboxBatchSize,
		MaxRetries:       c.Config.OutboxMaxRetries,
		RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
		RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
	}, c.Logger).WithMetrics(c.Metrics)
	return nil
}

func (c *Container) initHandlers() error {
	conn := c.DB

	// Identity
	users := identityPersistence.NewSQLUserRepository(conn)
	issuer, err := token.NewJWTIssuer(c.Config.JWTSecret, c.Config.JWTTTL)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}
	var revocations identityDomain.RevocationStore = revocation.NewMemoryStore()
	if c.RedisClient != nil {
		revocations = revocation.NewRedisStore(c.RedisClient)
	}
	c.Auth = auth.NewService(users, issuer, revocations, c.OutboxRepo, c.UnitOfWork, c.Logger)
	c.Directory = auth.NewDirectory(users)

	// Planning
	plans := planPersistence.NewSQLPlanRepository(conn)
	memberships := planPersistence.NewSQLMembershipRepository(conn)
	readModel := planPersistence.NewSQLReadModel(conn)
	deps := planCommands.Deps{
		Plans:       plans,
		Memberships: memberships,
		Outbox:      c.OutboxRepo,
		UoW:         c.UnitOfWork,
		Metrics:     c.Metrics,
	}
	c.PlanAccess = planQueries.NewPlanAccessHandler(plans, memberships)
	c.CreatePlan = planCommands.NewCreatePlanHandler(deps)
	c.Apply = planCommands.NewApplyHandler(deps)
	c.CancelApplication = planCommands.NewCancelApplicationHandler(deps)
	c.DecideApplication = planCommands.NewDecideApplicationHandler(deps)
	c.Invite = planCommands.NewInviteHandler(deps, userDirectory{c.Directory})
	c.DecideInvitation = planCommands.NewDecideInvitationHandler(deps)
	c.ClosePlan = planCommands.NewClosePlanHandler(deps)
	c.StartPlan = planCommands.NewStartPlanHandler(deps)
	c.CompletePlan = planCommands.NewCompletePlanHandler(deps)
	c.DiscoverPlans = planQueries.NewDiscoverPlansHandler(readModel)
	c.MyPlans = planQueries.NewMyPlansHandler(readModel)
	c.GetPlan = planQueries.NewGetPlanHandler(plans, readModel)
	c.CheckCurrent = planQueries.NewCheckCurrentHandler(memberships)
	c.Scheduler = workers.NewLifecycleScheduler(plans, c.StartPlan, c.CompletePlan, c.Config.SchedulerInterval, c.Logger)

	// Chat
	messages := chatPersistence.NewSQLMessageRepository(conn)
	c.SendMessage = chatCommands.NewSendMessageHandler(messages, c.PlanAccess, c.OutboxRepo, c.UnitOfWork, c.Metrics)
	c.ChatHistory = chatQueries.NewHistoryHandler(messages, c.PlanAccess, c.Config.ChatHistoryLimit)
	c.GetMessage = chatQueries.NewGetMessageHandler(messages)

	// Polls
	polls := pollPersistence.NewSQLPollRepository(conn)
	pollDeps := pollCommands.Deps{Polls: polls, Access: c.PlanAccess, Outbox: c.OutboxRepo, UoW: c.UnitOfWork}
	c.CreatePoll = pollCommands.NewCreatePollHandler(pollDeps)
	c.Vote = pollCommands.NewVoteHandler(pollDeps)
	c.ClosePoll = pollCommands.NewClosePollHandler(pollDeps)
	c.ListPolls = pollQueries.NewListPollsHandler(polls, c.PlanAccess)

	// Expenses
	expenses := expensePersistence.NewSQLExpenseRepository(conn)
	expenseDeps := expenseCommands.Deps{Expenses: expenses, Access: c.PlanAccess, Outbox: c.OutboxRepo, UoW: c.UnitOfWork}
	c.CreateExpense = expenseCommands.NewCreateExpenseHandler(expenseDeps)
	c.MarkPaid = expenseCommands.NewMarkPaidHandler(expenseDeps)
	c.ListExpenses = expenseQueries.NewListExpensesHandler(expenses, c.PlanAccess)
	c.ExpenseSummary = expenseQueries.NewSummaryHandler(expenses, c.PlanAccess)

	// Notifications
	notifications := notificationPersistence.NewSQLNotificationRepository(conn)
	c.NotificationSubscriber = notificationSubs.NewNotificationSubscriber(notifications, c.Metrics, c.Logger)
	c.ListNotifications = notificationQueries.NewListNotificationsHandler(notifications)
	c.MarkNotificationRead = notificationCommands.NewMarkReadHandler(notifications)
	if c.Bus != nil {
		c.Bus.RegisterConsumer(c.NotificationSubscriber)
	}

	store, err := files.NewStore(c.Config.FileStorageDir, c.Config.FileBaseURL)
	if err != nil {
		return err
	}
	c.Files = store
	return nil
}

// Subscribe delivers every published event to consumers in this process.
// In local mode they join the in-process bus; otherwise they share a
// private RabbitMQ queue that lives as long as the container.
func (c *Container) Subscribe(ctx context.Context, consumers ...eventbus.EventConsumer) error {
	return c.subscribe(ctx, "", consumers)
}

// SubscribeShared is Subscribe over a durable named queue, so processes
// calling it with the same name split the events between them and nothing
// is lost while none is running.
func (c *Container) SubscribeShared(ctx context.Context, queue string, consumers ...eventbus.EventConsumer) error {
	return c.subscribe(ctx, queue, consumers)
}

func (c *Container) subscribe(ctx context.Context, queue string, consumers []eventbus.EventConsumer) error {
	if c.Bus != nil {
		for _, consumer := range consumers {
			c.Bus.RegisterConsumer(consumer)
		}
		return nil
	}

	registry := eventbus.NewConsumerRegistry(c.Logger)
	for _, consumer := range consumers {
		registry.Register(consumer)
	}
	rc, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:       c.Config.RabbitMQURL,
		QueueName: queue,
		Exclusive: queue == "",
		Prefetch:  16,
		Logger:    c.Logger,
	}, registry)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}
	c.consumers = append(c.consumers, rc)
	go func() {
		if err := rc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error("event consumer stopped", "error", err)
		}
	}()
	return nil
}

// Close releases all resources.
func (c *Container) Close() {
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}
	for _, rc := range c.consumers {
		if err := rc.Close(); err != nil {
			c.Logger.Error("failed to close event consumer", "error", err)
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Error("failed to close publisher", "error", err)
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Error("failed to close Redis client", "error", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Error("failed to close database", "error", err)
		}
	}
}

// userDirectory translates identity lookups into the planning context's
// errors.
type userDirectory struct {
	dir *auth.Directory
}

func (d userDirectory) FindIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	id, err := d.dir.FindIDByEmail(ctx, email)
	if errors.Is(err, identityDomain.ErrUserNotFound) {
		return uuid.Nil, planningDomain.ErrUserNotFound
	}
	return id, err
}
