package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	"order-pipeline/internal/config"
	"order-pipeline/internal/database"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/handler"
	"order-pipeline/internal/infrastructure/cache"
	"order-pipeline/internal/infrastructure/events"
	"order-pipeline/internal/infrastructure/payment"
	"order-pipeline/internal/metrics"
	"order-pipeline/internal/repo"
	"order-pipeline/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	orders := flag.Int("orders", 8, "number of gateway orders to place")
	stock := flag.Int("stock", 5, "initial stock of the simulated product")
	declineEvery := flag.Int("decline-every", 4, "every n-th payment is declined by the shopper (0 = never)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate error: %v", err)
	}

	zl := zap.NewNop()
	txRunner := database.NewTxRunner(db)
	orderRepo := repo.NewOrderRepo(db)
	productRepo := repo.NewProductRepo(db)
	cartRepo := repo.NewCartRepo(db)
	gateway := payment.NewGateway(payment.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		TmnCode:     cfg.Gateway.TmnCode,
		HashSecret:  cfg.Gateway.HashSecret,
		ReturnURL:   cfg.Gateway.ReturnURL,
		Version:     cfg.Gateway.Version,
		Currency:    cfg.Gateway.Currency,
		Locale:      cfg.Gateway.Locale,
		AmountScale: cfg.Gateway.AmountScale,
	})
	sandbox := payment.NewSandbox(gateway)
	publisher := events.NewNoop()
	snapshots := cache.NewNoopSnapshotStore()

	orderService := service.NewOrderService(txRunner, orderRepo, productRepo, cartRepo, repo.NewCustomerRepo(), snapshots, publisher, gateway.Location(), zl)
	paymentService := service.NewPaymentService(txRunner, orderRepo, productRepo, repo.NewPaymentRepo(db), gateway, publisher, zl)
	lifecycleService := service.NewLifecycleService(txRunner, orderRepo, productRepo, publisher, zl)

	gin.SetMode(gin.ReleaseMode)
	h := handler.New(orderService, paymentService, lifecycleService, snapshots, database.New(db, zl), metrics.New(), cfg.FrontendURL, zl)
	api := httptest.NewServer(h.Router(nil))
	defer api.Close()

	product := &domain.Product{
		Name:    fmt.Sprintf("Load Test Mug %d", time.Now().Unix()),
		Price:   decimal.NewFromInt(100),
		Stock:   *stock,
		Enabled: true,
	}
	if err := productRepo.Create(ctx, product); err != nil {
		log.Fatalf("seed product: %v", err)
	}

	fmt.Printf("--- STARTING SIMULATION (%d ORDERS, STOCK %d) ---\n", *orders, *stock)
	for i := 1; i <= *orders; i++ {
		owner := fmt.Sprintf("sim-guest-%d-%d", product.ID, i)
		if err := cartRepo.AddItem(ctx, owner, product.ID, 1); err != nil {
			log.Printf("add to cart failed: %v", err)
			continue
		}

		// 1. Create
		res, err := orderService.CreateOrder(ctx, service.CreateOrderInput{
			OwnerID:       owner,
			ContactName:   "Simulated Shopper",
			Email:         fmt.Sprintf("shopper%d@sim.test", i),
			Phone:         "0900000000",
			Address:       "1 Simulation Street",
			PaymentMethod: domain.PaymentGateway,
		})
		if err != nil {
			fmt.Printf("[%d] Create FAILED: %v\n", i, err)
			continue
		}
		order := res.Order

		// 2. Redirect to the gateway
		redirect, err := paymentService.BuildPaymentURL(ctx, service.PaymentURLInput{
			OrderID:  order.ID,
			Amount:   order.Total,
			BankCode: "NCB",
			ClientIP: "127.0.0.1",
		})
		if err != nil {
			fmt.Printf("[%d] Payment URL FAILED: %v\n", i, err)
			continue
		}

		code := payment.ResponseSuccess
		if *declineEvery > 0 && i%*declineEvery == 0 {
			code = "24"
		}
		callback, err := sandbox.Settle(redirect.TxnRef, order.Total, code, "NCB")
		if err != nil {
			log.Fatalf("settle: %v", err)
		}

		// 3. The gateway calls back twice, with no ordering between the two channels.
		fmt.Printf("[%d] Order %s (gateway code %s) ... ", i, order.Code, code)
		webhook, returned := fireCallbacks(ctx, api.URL, callback)
		fmt.Printf("webhook=%s return=%s\n", webhook, returned)

		// 4. Query the DB again to see what actually stuck.
		fresh, _ := orderRepo.FindById(ctx, order.ID)
		current, _ := productRepo.FindById(ctx, product.ID)
		fmt.Printf("    -> DB Status: %s, stock left: %d\n", fresh.Status, current.Stock)
		fmt.Println("---------------------------------------------------")
	}

	final, _ := productRepo.FindById(ctx, product.ID)
	fmt.Printf("--- DONE: final stock %d (never below zero) ---\n", final.Stock)
}

// fireCallbacks delivers the same signed callback through the webhook and the browser
// return concurrently and reports what each channel answered.
func fireCallbacks(ctx context.Context, baseURL string, params map[string]string) (webhook, returned string) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := get(gctx, client, baseURL+"/api/payments/webhook?"+query.Encode())
		if err != nil {
			webhook = "error: " + err.Error()
			return nil
		}
		defer resp.Body.Close()
		var ack handler.WebhookAck
		if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
			webhook = "undecodable"
			return nil
		}
		webhook = ack.RspCode + " " + ack.Message
		return nil
	})
	g.Go(func() error {
		resp, err := get(gctx, client, baseURL+"/api/payments/return?"+query.Encode())
		if err != nil {
			returned = "error: " + err.Error()
			return nil
		}
		defer resp.Body.Close()
		loc, err := url.Parse(resp.Header.Get("Location"))
		if err != nil {
			returned = "bad redirect"
			return nil
		}
		q := loc.Query()
		returned = "success=" + q.Get("success")
		if reason := q.Get("reason"); reason != "" {
			returned += " (" + reason + ")"
		}
		return nil
	})
	_ = g.Wait()
	return webhook, returned
}

func get(ctx context.Context, client *http.Client, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}
