// README: Benchmark cases for the location API; includes HTTP, DB, Redis, consistency and performance checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	runID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

// record mirrors the GET /ubicacion response.
type record struct {
	UnitID      string    `json:"unit_id"`
	Latitud     float64   `json:"latitud"`
	Longitud    float64   `json:"longitud"`
	Ruta        *string   `json:"ruta"`
	Actualizado time.Time `json:"actualizado"`
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		runID: fmt.Sprintf("%d", time.Now().UnixNano()),
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

// unit scopes a unit id to this run so repeated runs start from a missing record.
func (r *Runner) unit(name string) string {
	return "bench-" + name + "-" + r.runID
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Tables from migrations/0001_init.sql exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		httpCaseMethod("API: health", http.MethodGet, base+"/", nil, []int{200}),

		// Validation gate
		httpCase("Validation: missing unit_id -> 400", base+"/ubicacion", map[string]any{
			"lat": 10.5,
			"lon": -20.1,
		}, []int{400}),
		httpCase("Validation: missing lat -> 400", base+"/ubicacion", map[string]any{
			"unit_id": r.unit("val"),
			"lon":     -20.1,
		}, []int{400}),
		httpCase("Validation: missing lon -> 400", base+"/ubicacion", map[string]any{
			"unit_id": r.unit("val"),
			"lat":     10.5,
		}, []int{400}),
		httpCase("Validation: empty body -> 400", base+"/ubicacion", map[string]any{}, []int{400}),
		httpCase("Validation: zero coordinates accepted", base+"/ubicacion", map[string]any{
			"unit_id": r.unit("zero"),
			"lat":     0.0,
			"lon":     0.0,
		}, []int{200}),
		{
			Name:  "Validation: rejected report never creates a record",
			Focus: "Validation failure leaves the store untouched",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.getStatus(ctx, base, r.unit("val"), http.StatusNotFound)
			},
		},

		// Upsert protocol
		{
			Name:  "Query: unknown unit -> 404",
			Focus: "Missing record",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.getStatus(ctx, base, r.unit("ghost"), http.StatusNotFound)
			},
		},
		{
			Name:  "Upsert: bus scenario (create, set route, sticky route)",
			Focus: "Latest position wins, route kept when omitted",
			Run: func(ctx context.Context, r *Runner) Result {
				return busScenario(ctx, r, base, r.unit("bus1"))
			},
		},
		{
			Name:  "Consistency: one row per unit",
			Focus: "Upserts never duplicate a unit",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				var n int
				if err := r.db.QueryRow(ctx, "SELECT count(*) FROM ubicaciones WHERE unit_id=$1", r.unit("bus1")).Scan(&n); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if n != 1 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("rows=%d", n)}
				}
				return Result{Status: "PASS"}
			},
		},

		// Concurrency
		{
			Name:  "Concurrency: reports for one unit",
			Focus: "Final record equals one complete write",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentReports(ctx, r, base, r.unit("shared"))
			},
		},

		// Geo
		{
			Name:  "Geo: nearby search",
			Focus: "Reported unit appears in radius search",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				return nearbySearch(ctx, r, base, r.unit("geo"))
			},
		},

		// Performance
		{
			Name:  "Perf: location report throughput",
			Focus: "Sustained POST /ubicacion",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/ubicacion", map[string]any{
					"unit_id": r.unit("perf"),
					"lat":     19.4326,
					"lon":     -99.1332,
				})
			},
		},
	}
}

func httpCase(name, url string, body any, okStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			status, _, latency, err := r.do(ctx, method, url, body)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if slices.Contains(okStatuses, status) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, time.Since(start), err
}

func (r *Runner) report(ctx context.Context, base string, body map[string]any) error {
	status, data, _, err := r.do(ctx, http.MethodPost, base+"/ubicacion", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("report status=%d body=%s", status, data)
	}
	return nil
}

func (r *Runner) fetch(ctx context.Context, base, unitID string) (*record, error) {
	status, data, _, err := r.do(ctx, http.MethodGet, base+"/ubicacion/"+url.PathEscape(unitID), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get status=%d", status)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Runner) getStatus(ctx context.Context, base, unitID string, want int) Result {
	status, _, latency, err := r.do(ctx, http.MethodGet, base+"/ubicacion/"+url.PathEscape(unitID), nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != want {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
}

func busScenario(ctx context.Context, r *Runner, base, unitID string) Result {
	steps := []struct {
		body      map[string]any
		lat, lon  float64
		wantRoute string
	}{
		{map[string]any{"unit_id": unitID, "lat": 10.5, "lon": -20.1}, 10.5, -20.1, ""},
		{map[string]any{"unit_id": unitID, "lat": 11.0, "lon": -20.2, "route": "Line5"}, 11.0, -20.2, "Line5"},
		{map[string]any{"unit_id": unitID, "lat": 12.0, "lon": -20.3}, 12.0, -20.3, "Line5"},
	}

	start := time.Now()
	var prev time.Time
	for i, st := range steps {
		if err := r.report(ctx, base, st.body); err != nil {
			return Result{Status: "FAIL", Note: fmt.Sprintf("step %d: %v", i+1, err)}
		}
		rec, err := r.fetch(ctx, base, unitID)
		if err != nil {
			return Result{Status: "FAIL", Note: fmt.Sprintf("step %d: %v", i+1, err)}
		}
		if rec.Latitud != st.lat || rec.Longitud != st.lon {
			return Result{Status: "FAIL", Note: fmt.Sprintf("step %d: position %v,%v", i+1, rec.Latitud, rec.Longitud)}
		}
		got := ""
		if rec.Ruta != nil {
			got = *rec.Ruta
		}
		if got != st.wantRoute {
			return Result{Status: "FAIL", Note: fmt.Sprintf("step %d: ruta=%q want %q", i+1, got, st.wantRoute)}
		}
		if rec.Actualizado.Before(prev) {
			return Result{Status: "FAIL", Note: fmt.Sprintf("step %d: actualizado went backwards", i+1)}
		}
		prev = rec.Actualizado
	}
	return Result{Status: "PASS", Latency: time.Since(start)}
}

func concurrentReports(ctx context.Context, r *Runner, base, unitID string) Result {
	wg := sync.WaitGroup{}
	failed := 0
	mu := sync.Mutex{}

	for i := 1; i <= r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := float64(i)
			err := r.report(ctx, base, map[string]any{
				"unit_id": unitID,
				"lat":     v,
				"lon":     -v,
				"route":   fmt.Sprintf("R%d", i),
			})
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if failed > 0 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("failed=%d", failed)}
	}
	rec, err := r.fetch(ctx, base, unitID)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if rec.Longitud != -rec.Latitud || rec.Ruta == nil || *rec.Ruta != fmt.Sprintf("R%d", int(rec.Latitud)) {
		return Result{Status: "FAIL", Note: fmt.Sprintf("mixed write: %+v", rec)}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("winner=R%d", int(rec.Latitud))}
}

func nearbySearch(ctx context.Context, r *Runner, base, unitID string) Result {
	if err := r.report(ctx, base, map[string]any{"unit_id": unitID, "lat": 19.4330, "lon": -99.1340}); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	status, data, latency, err := r.do(ctx, http.MethodGet, base+"/ubicaciones/cercanas?lat=19.4326&lon=-99.1332&radio_km=1", nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	var units []record
	if err := json.Unmarshal(data, &units); err != nil {
		return Result{Status: "FAIL", Latency: latency, Note: err.Error()}
	}
	for _, u := range units {
		if u.UnitID == unitID {
			return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("results=%d", len(units))}
		}
	}
	return Result{Status: "FAIL", Latency: latency, Note: "reported unit missing from results"}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var ok, failed int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.do(ctx, http.MethodPost, url, payload)
				mu.Lock()
				if err == nil && status == http.StatusOK {
					ok++
				} else {
					failed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok == 0 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("no successful requests, errors=%d", failed)}
	}
	rps := float64(ok) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, failed)}
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+(\w+)`)

// extractTables lists the tables a migration file creates.
func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
		tables = append(tables, m[1])
	}
	return tables, nil
}

// splitSQL drops "--" comment lines and splits the rest on semicolons.
func splitSQL(sql string) []string {
	var body strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	var stmts []string
	for _, part := range strings.Split(body.String(), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
