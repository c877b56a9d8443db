package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	methodAdd    = "AddToCart"
	methodUpdate = "UpdateQuantity"
	methodGet    = "GetCart"
	scenarioName = "scenario"
)

// cartClient: часть API витрины, которую нагружает тест.
type cartClient interface {
	ListProducts(ctx context.Context, in *grpcsvc.ListProductsRequest, opts ...grpc.CallOption) (*grpcsvc.ListProductsResponse, error)
	GetCart(ctx context.Context, opts ...grpc.CallOption) (*grpcsvc.Cart, error)
	AddToCart(ctx context.Context, in *grpcsvc.AddToCartRequest, opts ...grpc.CallOption) (*grpcsvc.Cart, error)
	UpdateQuantity(ctx context.Context, in *grpcsvc.UpdateQuantityRequest, opts ...grpc.CallOption) (*grpcsvc.Cart, error)
}

type config struct {
	addr        string
	users       int
	workers     int
	ops         int
	connections int
	timeout     time.Duration
	productID   string
	userTag     string
	emailDomain string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// userResult: итог проверки одной корзины: ожидаемое и фактическое количество.
type userResult struct {
	Email     string `json:"email"`
	Baseline  int    `json:"baseline"`
	Applied   int64  `json:"applied"`
	Ambiguous int64  `json:"ambiguous"`
	Final     int    `json:"final"`
	Lost      int64  `json:"lost"`
	Err       string `json:"error,omitempty"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	ProductID         string                  `json:"product_id"`
	Users             int                     `json:"users"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	LostUpdates       int64                   `json:"lost_updates"`
	FailedUsers       int                     `json:"failed_users"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Carts             []userResult            `json:"carts"`
}

func (r report) ok() bool {
	return r.LostUpdates == 0 && r.FailedUsers == 0
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if stats := c.methods[scenarioName]; stats != nil {
		result.TotalScenarios = stats.calls
		result.SuccessScenarios = stats.success
		result.FailedScenarios = stats.failed
		result.ErrorRate = ratio(stats.failed, stats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(stats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("cart-loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.users, "users", 20, "number of distinct carts")
	fs.IntVar(&cfg.workers, "workers", 8, "concurrent workers per cart")
	fs.IntVar(&cfg.ops, "ops", 25, "increments issued by each worker")
	fs.IntVar(&cfg.connections, "connections", 4, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&cfg.productID, "product", "", "product to add (default: first product in the catalog)")
	fs.StringVar(&cfg.userTag, "user-tag", "load", "email local-part prefix")
	fs.StringVar(&cfg.emailDomain, "email-domain", "loadtest.local", "email domain for generated users")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch {
	case cfg.users <= 0:
		return cfg, errors.New("users must be > 0")
	case cfg.workers <= 0:
		return cfg, errors.New("workers must be > 0")
	case cfg.ops <= 0:
		return cfg, errors.New("ops must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case strings.TrimSpace(cfg.userTag) == "":
		return cfg, errors.New("user-tag is required")
	case strings.TrimSpace(cfg.emailDomain) == "":
		return cfg, errors.New("email-domain is required")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]cartClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithUserAgent(version.UserAgent("cart-loadtest")),
		)
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewStorefrontClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := run(context.Background(), cfg, clients)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if !result.ok() {
		os.Exit(1)
	}
}

// run нагружает cfg.users корзин параллельно и сверяет итоговые количества.
func run(ctx context.Context, cfg config, clients []cartClient) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("no clients")
	}

	productID, err := resolveProduct(ctx, clients[0], cfg)
	if err != nil {
		return report{}, err
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	carts := make([]userResult, cfg.users)
	var wg sync.WaitGroup
	for i := 0; i < cfg.users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("%s-%s-%d@%s", cfg.userTag, runID, i, cfg.emailDomain)
			carts[i] = runUser(ctx, clients, cfg, email, productID, col)
		}(i)
	}
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	result.ProductID = productID
	result.Users = cfg.users
	result.Carts = carts
	for _, c := range carts {
		result.LostUpdates += c.Lost
		if c.Err != "" {
			result.FailedUsers++
		}
	}
	return result, nil
}

func resolveProduct(ctx context.Context, client cartClient, cfg config) (string, error) {
	if id := strings.TrimSpace(cfg.productID); id != "" {
		return id, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	resp, err := client.ListProducts(callCtx, &grpcsvc.ListProductsRequest{})
	if err != nil {
		return "", fmt.Errorf("list products: %w", err)
	}
	if len(resp.Products) == 0 {
		return "", errors.New("catalog is empty, pass -product")
	}
	return resp.Products[0].ID, nil
}

// runUser создаёт позицию товара и бьёт в неё параллельными +1 через
// AddToCart и UpdateQuantity. Итоговое количество обязано равняться
// исходному плюс число успешных вызовов.
func runUser(ctx context.Context, clients []cartClient, cfg config, email, productID string, col *collector) userResult {
	result := userResult{Email: email}
	creds := grpc.PerRPCCredentials(auth.BearerCredentials{Token: email, Insecure: true})

	seed, err := call(ctx, cfg.timeout, col, methodAdd, func(ctx context.Context) (*grpcsvc.Cart, error) {
		return clients[0].AddToCart(ctx, &grpcsvc.AddToCartRequest{ProductID: productID}, creds)
	})
	if err != nil {
		result.Err = fmt.Sprintf("seed: %v", err)
		return result
	}
	line, ok := findLine(seed, productID)
	if !ok {
		result.Err = "seed: line not found in cart"
		return result
	}
	result.Baseline = line.Quantity

	var applied, ambiguous atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < cfg.workers; w++ {
		wg.Add(1)
		client := clients[w%len(clients)]
		go func(w int) {
			defer wg.Done()
			for op := 0; op < cfg.ops; op++ {
				start := time.Now()
				var err error
				if (w+op)%2 == 0 {
					_, err = call(ctx, cfg.timeout, col, methodAdd, func(ctx context.Context) (*grpcsvc.Cart, error) {
						return client.AddToCart(ctx, &grpcsvc.AddToCartRequest{ProductID: productID}, creds)
					})
				} else {
					_, err = call(ctx, cfg.timeout, col, methodUpdate, func(ctx context.Context) (*grpcsvc.Cart, error) {
						return client.UpdateQuantity(ctx, &grpcsvc.UpdateQuantityRequest{LineID: line.ID, Delta: 1}, creds)
					})
				}
				col.record(scenarioName, time.Since(start), grpcCode(err))

				switch {
				case err == nil:
					applied.Add(1)
				case status.Code(err) == codes.DeadlineExceeded || status.Code(err) == codes.Canceled:
					// Сервер мог успеть записать изменение.
					ambiguous.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	result.Applied = applied.Load()
	result.Ambiguous = ambiguous.Load()

	final, err := call(ctx, cfg.timeout, col, methodGet, func(ctx context.Context) (*grpcsvc.Cart, error) {
		return clients[0].GetCart(ctx, creds)
	})
	if err != nil {
		result.Err = fmt.Sprintf("verify: %v", err)
		return result
	}
	if line, ok = findLine(final, productID); !ok {
		result.Err = "verify: line disappeared"
		return result
	}
	result.Final = line.Quantity
	result.Lost = lostUpdates(result)
	return result
}

// lostUpdates считает потерянные инкременты. Неоднозначные вызовы могут
// как примениться, так и нет, поэтому допустимый диапазон расширяется на их число.
func lostUpdates(r userResult) int64 {
	expectedMin := int64(r.Baseline) + r.Applied
	expectedMax := expectedMin + r.Ambiguous
	final := int64(r.Final)
	switch {
	case final < expectedMin:
		return expectedMin - final
	case final > expectedMax:
		return final - expectedMax
	default:
		return 0
	}
}

func call(ctx context.Context, timeout time.Duration, col *collector, method string, fn func(context.Context) (*grpcsvc.Cart, error)) (*grpcsvc.Cart, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := fn(callCtx)
	col.record(method, time.Since(start), grpcCode(err))
	return resp, err
}

func findLine(cart *grpcsvc.Cart, productID string) (grpcsvc.CartLine, bool) {
	if cart == nil {
		return grpcsvc.CartLine{}, false
	}
	for _, line := range cart.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return grpcsvc.CartLine{}, false
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(out, "Cart load test summary")
	_, _ = fmt.Fprintf(out, "product=%s users=%d workers=%d ops=%d scenarios=%d failed=%d error_rate=%.4f\n",
		result.ProductID,
		cfg.users,
		cfg.workers,
		cfg.ops,
		result.TotalScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	_, _ = fmt.Fprintf(out, "duration=%.2fs rps=%.2f lost_updates=%d failed_users=%d\n",
		result.DurationSeconds, result.RPS, result.LostUpdates, result.FailedUsers)
	_, _ = fmt.Fprintf(out, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == scenarioName {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(out,
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}

	for _, c := range result.Carts {
		if c.Lost == 0 && c.Err == "" {
			continue
		}
		_, _ = fmt.Fprintf(out, "cart %s: baseline=%d applied=%d ambiguous=%d final=%d lost=%d %s\n",
			c.Email, c.Baseline, c.Applied, c.Ambiguous, c.Final, c.Lost, c.Err)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
