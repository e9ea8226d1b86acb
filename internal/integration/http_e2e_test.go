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
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "pricewatch/internal/adapters/http_server"
	redisad "pricewatch/internal/adapters/redis"
	"pricewatch/internal/adapters/renderer"
	"pricewatch/internal/app"
	"pricewatch/internal/domain"
	"pricewatch/internal/normalize"
	"pricewatch/internal/retry"
	mysqlrepo "pricewatch/internal/storage/mysql"
)

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func TestHTTP_EndToEnd_SearchAndCompare(t *testing.T) {
	// isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=pricewatch",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "pricewatch")

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

	applyMigrations(t, db)

	// fake render service: serves a deterministic booking page
	renderSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<h2 data-testid="title">Grand Budapest</h2>
			<span class="room-price">USD 250.00</span>
		</body></html>`))
	}))
	defer renderSrv.Close()

	repo := mysqlrepo.New(db)
	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)

	rend, err := renderer.New(renderSrv.URL, "https://booking.example.com/search", 5*time.Second, 100)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}

	search := app.NewSearchService(rend, repo, app.SearchConfig{
		Retry:     retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2},
		Normalize: normalize.DefaultOptions,
	})
	compare := app.NewCompareService(repo, cache, time.Minute)

	if err := repo.RegisterHotel(context.Background(), domain.Hotel{
		Key: "grand-budapest", DisplayName: "Grand Budapest", SearchName: "Grand Budapest Hotel",
	}); err != nil {
		t.Fatalf("RegisterHotel: %v", err)
	}

	srv := server.New()
	srv.MountHandlers(&server.Handlers{Search: search, Compare: compare, Store: repo})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// run a search through the API
	body, _ := json.Marshal(map[string]any{
		"hotel_key": "grand-budapest",
		"check_in":  "2024-12-25",
		"check_out": "2024-12-26",
		"guests":    2,
	})
	res, err := http.Post(ts.URL+"/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/search: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("search status %d", res.StatusCode)
	}
	var obs struct {
		HotelID  string  `json:"hotelId"`
		Price    float64 `json:"price"`
		Currency string  `json:"currency"`
	}
	if err := json.NewDecoder(res.Body).Decode(&obs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if obs.HotelID != "grand-budapest" || obs.Price != 250 || obs.Currency != "USD" {
		t.Fatalf("unexpected observation: %+v", obs)
	}

	// the observation must now show up in compare
	res2, err := http.Get(ts.URL + "/v1/compare?keys=grand-budapest,ghost-hotel")
	if err != nil {
		t.Fatalf("GET /v1/compare: %v", err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("compare status %d", res2.StatusCode)
	}
	var ranked []struct {
		HotelKey    string   `json:"hotel_key"`
		LatestPrice *float64 `json:"latest_price"`
	}
	if err := json.NewDecoder(res2.Body).Decode(&ranked); err != nil {
		t.Fatalf("decode compare: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 rows, got %+v", ranked)
	}
	if ranked[0].HotelKey != "grand-budapest" || ranked[0].LatestPrice == nil || *ranked[0].LatestPrice != 250 {
		t.Fatalf("priced hotel first: %+v", ranked)
	}
	if ranked[1].HotelKey != "ghost-hotel" || ranked[1].LatestPrice != nil {
		t.Fatalf("observation-less hotel last: %+v", ranked)
	}
}
