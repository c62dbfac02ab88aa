//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"

	server "stayhub/internal/adapters/http_server"
	"stayhub/internal/adapters/paystack"
	redisad "stayhub/internal/adapters/redis"
	"stayhub/internal/app"
	"stayhub/internal/domain"
	mysqlrepo "stayhub/internal/storage/mysql"
	"stayhub/migrations"
)

// ---------- helpers ----------

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=stayhub",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/stayhub?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.Apply(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakePaystack records initialized transactions and reports them as paid
// once markPaid was called.
type fakePaystack struct {
	mu      sync.Mutex
	amounts map[string]int64
	paid    map[string]bool
}

func (f *fakePaystack) markPaid(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid[ref] = true
}

func (f *fakePaystack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/transaction/initialize":
		var body struct {
			Amount    int64  `json:"amount"`
			Reference string `json:"reference"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.amounts[body.Reference] = body.Amount
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true, "message": "Authorization URL created",
			"data": map[string]any{"authorization_url": "https://checkout.example/" + body.Reference, "reference": body.Reference},
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
		ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		status := "abandoned"
		if f.paid[ref] {
			status = "success"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true, "message": "Verification successful",
			"data": map[string]any{"status": status, "reference": ref, "amount": f.amounts[ref]},
		})
	default:
		http.NotFound(w, r)
	}
}

func call(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return res.StatusCode
}

// ---------- the test ----------

func TestHTTP_EndToEnd_BookAndPay(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()
	if err := repo.PutProperty(ctx, domain.Property{ID: "prop-1", Name: "Harbour Flat", Location: "Lagos", PricePerNight: 45000}); err != nil {
		t.Fatalf("PutProperty: %v", err)
	}

	mr := miniredis.RunT(t)
	cache := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })

	ps := &fakePaystack{amounts: map[string]int64{}, paid: map[string]bool{}}
	gwSrv := httptest.NewServer(ps)
	defer gwSrv.Close()
	gw, err := paystack.New(gwSrv.URL, "sk_test", 100, 2*time.Second)
	if err != nil {
		t.Fatalf("paystack: %v", err)
	}

	q := app.NewQueryService(repo, cache, time.Minute)
	srv := server.New(10 * time.Second)
	srv.MountHandlers(&server.Handlers{
		Bookings: app.NewBookingService(repo, app.DefaultTaxRate),
		Payments: app.NewPaymentService(repo, repo, gw, "http://localhost:3000/payment/verify", q),
		Q:        q,
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// book two nights
	var booking struct {
		ID         string  `json:"id"`
		TotalPrice float64 `json:"totalPrice"`
		Status     string  `json:"status"`
	}
	code := call(t, http.MethodPost, ts.URL+"/api/booking/", map[string]any{
		"propertyId": "prop-1", "startDate": "2025-01-10", "endDate": "2025-01-12", "guestCount": 2, "extraCharge": 500,
	}, &booking)
	if code != http.StatusCreated || booking.TotalPrice != 90500 || booking.Status != "pending_payment" {
		t.Fatalf("create: %d %+v", code, booking)
	}

	// overlapping request is refused
	if code := call(t, http.MethodPost, ts.URL+"/api/booking/", map[string]any{
		"propertyId": "prop-1", "startDate": "2025-01-11", "endDate": "2025-01-13",
	}, nil); code != http.StatusConflict {
		t.Fatalf("overlap: status %d", code)
	}

	// pending views are read through to the store
	var view domain.BookingView
	if code := call(t, http.MethodGet, ts.URL+"/api/booking/"+booking.ID, nil, &view); code != http.StatusOK || view.Property == nil {
		t.Fatalf("get: %d %+v", code, view)
	}

	var init app.InitializeResult
	if code := call(t, http.MethodPost, ts.URL+"/api/payment/initialize", map[string]any{
		"bookingId": booking.ID, "payerEmail": "guest@example.com",
	}, &init); code != http.StatusOK || init.Reference == "" {
		t.Fatalf("initialize: %d %+v", code, init)
	}
	if got := ps.amounts[init.Reference]; got != 9050000 {
		t.Fatalf("gateway amount = %d, want 9050000", got)
	}

	// not paid yet
	if code := call(t, http.MethodGet, ts.URL+"/api/payment/verify?reference="+init.Reference, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("verify before pay: status %d", code)
	}

	ps.markPaid(init.Reference)
	for i := 0; i < 2; i++ {
		var vr struct {
			Message string `json:"message"`
		}
		if code := call(t, http.MethodGet, ts.URL+"/api/payment/verify?reference="+init.Reference, nil, &vr); code != http.StatusOK || vr.Message != "Payment successful" {
			t.Fatalf("verify #%d: %d %+v", i+1, code, vr)
		}
	}

	// the settled status is visible on the next read
	if code := call(t, http.MethodGet, ts.URL+"/api/booking/"+booking.ID, nil, &view); code != http.StatusOK || view.Status != domain.BookingPaid {
		t.Fatalf("after verify: %d status=%s", code, view.Status)
	}

	if code := call(t, http.MethodGet, ts.URL+"/api/payment/verify?reference=BOOK_missing_000000000000", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown reference: status %d", code)
	}
}
