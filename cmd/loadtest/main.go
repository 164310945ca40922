package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
)

type loadMode string

const (
	modePlace       loadMode = "place"
	modePlaceGet    loadMode = "place-get"
	modePlaceCancel loadMode = "place-cancel"
)

type config struct {
	addr            string
	total           int
	totalSet        bool
	duration        time.Duration
	concurrency     int
	connections     int
	timeout         time.Duration
	mode            loadMode
	cancelRate      int
	products        []string
	quantity        int
	customerTag     string
	allowRejections bool
	outputPath      string
}

// orderClient: часть grpcsvc.Client, которую использует нагрузка.
type orderClient interface {
	PlaceOrder(ctx context.Context, req *grpcsvc.PlaceOrderRequest, opts ...grpc.CallOption) (*grpcsvc.OrderResponse, error)
	GetOrder(ctx context.Context, req *grpcsvc.GetOrderRequest, opts ...grpc.CallOption) (*grpcsvc.GetOrderResponse, error)
	CancelOrder(ctx context.Context, req *grpcsvc.CancelOrderRequest, opts ...grpc.CallOption) (*grpcsvc.OrderResponse, error)
}

func parseConfig(args []string) (config, error) {
	var (
		cfg          config
		modeValue    string
		productsFlag string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-get | place-cancel")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for place mode (0..100)")
	fs.StringVar(&productsFlag, "products", "", "comma-separated product IDs; one line per product")
	fs.IntVar(&cfg.quantity, "qty", 1, "quantity of each line")
	fs.StringVar(&cfg.customerTag, "customer-tag", "load", "customer id prefix")
	fs.BoolVar(&cfg.allowRejections, "allow-rejections", false, "count FailedPrecondition/NotFound rejections as expected outcomes")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	for _, id := range strings.Split(productsFlag, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.products = append(cfg.products, id)
		}
	}

	switch {
	case len(cfg.products) == 0:
		return cfg, errors.New("at least one product id is required (-products)")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("qty must be > 0")
	case cfg.cancelRate < 0 || cfg.cancelRate > 100:
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.customerTag) == "":
		return cfg, errors.New("customer-tag is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modePlace, modePlaceGet, modePlaceCancel:
		return mode, nil
	}
	return "", fmt.Errorf("unsupported mode: %s", value)
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]orderClient, 0, cfg.connections)
	for range cfg.connections {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result := runLoad(cfg, clients)
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 || len(result.DuplicateNumbers) > 0 {
		os.Exit(1)
	}
}

// runLoad раздаёт сценарии воркерам и собирает отчёт.
func runLoad(cfg config, clients []orderClient) report {
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := range cfg.concurrency {
		client := clients[workerID%len(clients)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				runScenario(client, cfg, id, runID, col)
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := range cfg.total {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(client orderClient, cfg config, index int, runID string, col *collector) {
	start := time.Now()
	code, ok := codes.OK, true
	defer func() {
		col.record(scenarioMethod, time.Since(start), code, ok)
	}()

	req := &grpcsvc.PlaceOrderRequest{CustomerID: fmt.Sprintf("%s-%s-%d", cfg.customerTag, runID, index)}
	for _, productID := range cfg.products {
		req.Items = append(req.Items, grpcsvc.OrderItem{ProductID: productID, Quantity: cfg.quantity})
	}

	placed, err := timed(col, "PlaceOrder", cfg, func(ctx context.Context) (*grpcsvc.OrderResponse, error) {
		return client.PlaceOrder(ctx, req)
	})
	if err != nil {
		code, ok = status.Code(err), cfg.expectedRejection(err)
		return
	}
	if placed.Order.ID == "" || placed.Order.OrderNumber == "" {
		code, ok = codes.Internal, false
		return
	}
	if !col.trackOrderNumber(placed.Order.OrderNumber) {
		code, ok = codes.AlreadyExists, false
		return
	}

	orderID := placed.Order.ID
	switch {
	case cfg.mode == modePlaceGet:
		_, err = timed(col, "GetOrder", cfg, func(ctx context.Context) (*grpcsvc.GetOrderResponse, error) {
			return client.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: orderID})
		})
	case cfg.mode == modePlaceCancel || shouldCancelScenario(index, cfg.cancelRate):
		_, err = timed(col, "CancelOrder", cfg, func(ctx context.Context) (*grpcsvc.OrderResponse, error) {
			return client.CancelOrder(ctx, &grpcsvc.CancelOrderRequest{OrderID: orderID})
		})
	}
	if err != nil {
		code, ok = status.Code(err), false
	}
}

// timed выполняет вызов с таймаутом и записывает его в статистику метода.
func timed[T any](col *collector, method string, cfg config, call func(ctx context.Context) (*T, error)) (*T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	start := time.Now()
	resp, err := call(ctx)
	col.record(method, time.Since(start), status.Code(err), err == nil || (method == "PlaceOrder" && cfg.expectedRejection(err)))
	return resp, err
}

// expectedRejection: отказ по бизнес-причине, который не считается сбоем при -allow-rejections.
func (c config) expectedRejection(err error) bool {
	if !c.allowRejections {
		return false
	}
	switch status.Code(err) {
	case codes.FailedPrecondition, codes.NotFound:
		return true
	}
	return false
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}
