package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"pharmacy/internal/config"
	"pharmacy/internal/events"
	httpapi "pharmacy/internal/http"
	"pharmacy/internal/identity"
	"pharmacy/internal/repository"
	"pharmacy/internal/service"
	"pharmacy/internal/upload"
)

type backends struct {
	medicines repository.MedicineSource
	documents repository.DocumentStore
	accounts  repository.AccountRepository
	state     repository.StateStore
	tx        repository.TxManager
	uploader  upload.Uploader
	files     httpapi.FileServer
}

type broker struct {
	producer *events.OrderEventsProducer
	consumer *events.FulfillmentConsumer
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	backends   backends
	broker     broker
	orders     *service.OrderService
	workspaces *service.Workspaces
	httpServer *http.Server
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initStorage()
	app.initState()
	app.initUploads()
	app.initBroker()
	app.initHTTP()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initStorage() {
	const op = "App.initStorage"
	file := repository.NewFileMedicineSource(app.cfg.CatalogFile)

	if app.cfg.Storage.Backend != "postgres" {
		ms, err := file.ListMedicines(app.ctx)
		if err != nil {
			app.fallDown(op, err)
		}
		mem := repository.NewMemoryStore(ms...)
		app.backends.medicines = mem
		app.backends.documents = mem
		app.backends.accounts = mem
		app.backends.state = mem
		app.backends.tx = repository.NewMemoryTx(mem)
		return
	}

	db, err := repository.OpenPostgres(app.ctx, app.cfg.Storage.PostgresDSN)
	if err != nil {
		app.fallDown(op, err)
	}
	pg := repository.NewGormStore(db)
	if ms, err := file.ListMedicines(app.ctx); err == nil {
		if err := pg.ImportMedicines(app.ctx, ms); err != nil {
			app.fallDown(op, err)
		}
	} else {
		slog.Warn("catalog file not imported, serving stored catalog", "op", op, "err", err)
	}
	app.backends.medicines = pg
	app.backends.documents = pg
	app.backends.accounts = pg
	app.backends.state = pg
	app.backends.tx = pg
}

func (app *App) awsConfig(op string) aws.Config {
	cfg, err := awsconfig.LoadDefaultConfig(app.ctx)
	if err != nil {
		app.fallDown(op, err)
	}
	return cfg
}

// initState swaps the workspace state store when it lives apart from the documents.
func (app *App) initState() {
	const op = "App.initState"
	switch app.cfg.State.Backend {
	case "dynamodb":
		client := dynamodb.NewFromConfig(app.awsConfig(op))
		app.backends.state = repository.NewDynamoStateStore(client, app.cfg.State.DynamoDBTable)
	case "postgres":
		if _, ok := app.backends.state.(*repository.GormStore); !ok {
			app.fallDown(op, errors.New("state.backend=postgres requires storage.backend=postgres"))
		}
	}
}

func (app *App) initUploads() {
	const op = "App.initUploads"
	if app.cfg.Uploads.Backend != "s3" {
		mem := upload.NewMemoryUploader(app.cfg.Uploads.PublicBaseURL)
		app.backends.uploader = mem
		app.backends.files = mem
		return
	}
	client := s3.NewFromConfig(app.awsConfig(op), func(o *s3.Options) {
		if ep := app.cfg.Uploads.Endpoint; ep != "" {
			o.BaseEndpoint = aws.String(ep)
			o.UsePathStyle = true
		}
	})
	app.backends.uploader = upload.NewS3Uploader(client, app.cfg.Uploads.Bucket, app.cfg.Uploads.PublicBaseURL)
}

// initBroker builds the order events producer. The fulfillment consumer is
// created in initHTTP once the order service exists.
func (app *App) initBroker() {
	const op = "App.initBroker"
	seeds := app.cfg.Broker.SeedBrokers
	if len(seeds) == 0 {
		slog.Info("no seed brokers configured, order events are not published")
		return
	}
	codec, err := events.NewCodec(events.OrderEventSchemaTextV1)
	if err != nil {
		app.fallDown(op, err)
	}
	cl, err := events.NewProducerClient(seeds, app.cfg.Broker.Topics.OrderEvents)
	if err != nil {
		app.fallDown(op, err)
	}
	app.broker.producer, err = events.NewOrderEventsProducer(cl, codec)
	if err != nil {
		app.fallDown(op, err)
	}
}

func (app *App) initFulfillment(orders *service.OrderService) {
	const op = "App.initFulfillment"
	seeds := app.cfg.Broker.SeedBrokers
	if len(seeds) == 0 {
		return
	}
	codec, err := events.NewCodec(events.FulfillmentSchemaTextV1)
	if err != nil {
		app.fallDown(op, err)
	}
	cl, err := events.NewConsumerClient(seeds, app.cfg.Broker.Topics.Fulfillment, app.cfg.Broker.Consumers.FulfillmentGroup)
	if err != nil {
		app.fallDown(op, err)
	}
	app.broker.consumer, err = events.NewFulfillmentConsumer(cl, codec, orders)
	if err != nil {
		app.fallDown(op, err)
	}
}

func (app *App) initHTTP() {
	b := app.backends
	idp := identity.NewLocalProvider(b.accounts, app.cfg.Identity.JWTSecret, app.cfg.Identity.TokenTTL)
	catalog := service.NewCatalogService(b.medicines)

	var publisher service.EventPublisher = service.NopPublisher{}
	if app.broker.producer != nil {
		publisher = app.broker.producer
	}
	app.orders = service.NewOrderService(b.documents, b.tx, publisher)
	app.initFulfillment(app.orders)
	app.workspaces = service.NewWorkspaces(b.state, catalog, idp,
		service.WithMaxOpen(app.cfg.State.MaxWorkspaces),
		service.WithIdleTTL(app.cfg.State.WorkspaceIdle),
	)

	srv := httpapi.NewServer(httpapi.Deps{
		Catalog:       catalog,
		Workspaces:    app.workspaces,
		Sessions:      service.NewSessionService(idp, b.documents),
		Shop:          service.NewShopService(catalog),
		Orders:        app.orders,
		Checkout:      service.NewCheckoutService(app.orders),
		Prescriptions: service.NewPrescriptionService(b.uploader),
		Files:         b.files,
	})
	app.httpServer = &http.Server{
		Addr:              app.cfg.HTTPServerAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and the fulfillment consumer. stop is called
// when the server dies so the process can shut down.
func (app *App) Run(stop context.CancelFunc) {
	if app.broker.consumer != nil {
		go app.broker.consumer.Run(app.ctx)
	}
	go app.sweepWorkspaces()
	go func() {
		slog.Info("HTTP server listening", "addr", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			stop()
		}
	}()
}

func (app *App) sweepWorkspaces() {
	interval := app.cfg.State.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			if n := app.workspaces.Sweep(app.ctx); n > 0 {
				slog.Info("idle workspaces evicted", "count", n)
			}
		}
	}
}

func (app *App) Close(ctx context.Context) {
	if err := app.httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if app.broker.consumer != nil {
		app.broker.consumer.Close()
	}
	if app.broker.producer != nil {
		app.broker.producer.Close()
	}
	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	slog.Error("failed to start application", "op", op, "err", fmt.Errorf("%s: %w", op, err))
	os.Exit(2)
}
