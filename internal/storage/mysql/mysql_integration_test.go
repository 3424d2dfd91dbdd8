//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"propvalue/internal/domain"
	mysqlrepo "propvalue/internal/storage/mysql"
)

// ---------- small helpers ----------
func pfloat(f float64) *float64 { return &f }

func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

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

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=propvalue",
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
		"root", hostPort, "propvalue")

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
	return db
}

func office(ref, postcode string, size, pa float64) domain.Property {
	return domain.Property{
		ImporterID:      "itest",
		ExternalRef:     ref,
		Postcode:        postcode,
		Country:         "GB",
		PropertyType:    domain.TypeOffice,
		PropertySubType: "Office",
		SizeMinimum:     size,
		SizeMaximum:     size,
		PricePerAreaPA:  pa,
		PricePerAreaPCM: pa / 12,
		TransactionType: domain.TransactionLet,
		Status:          domain.StatusAvailable,
		EPC:             domain.EPC{Rating: "B", Score: 48, ValidUntil: domain.Epoch},
		CouncilTax:      domain.CouncilTax{Band: "N/A"},
		Planning:        domain.Planning{UseClass: "E(g)(i)", ListedBuilding: true},
		Latitude:        pfloat(51.501),
		Longitude:       pfloat(-0.141),
		Geocoding:       domain.Geocoding{Source: "feed", Accuracy: "rooftop"},
		AvailableFrom:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RawJSON:         []byte(`{"AGENT_REF":"` + ref + `"}`),
	}
}

// ---------- the tests ----------
func TestRepo_MySQL_ListingsAndReports(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// Arrange: two lettings in SW1A, one in SW1 (must not match the SW1A prefix)
	// and a sale in SW1A (not a rent comparable)
	sale := office("D", "SW1A 3CC", 1500, 0)
	sale.TransactionType = domain.TransactionSale
	var ids []int64
	for _, p := range []domain.Property{
		office("A", "SW1A 1AA", 1000, 20),
		office("B", "SW1 1AE", 900, 40),
		office("C", "SW1A 2BB", 2000, 10),
		sale,
	} {
		id, err := repo.SaveProperty(ctx, p)
		if err != nil {
			t.Fatalf("SaveProperty: %v", err)
		}
		ids = append(ids, id)
	}

	if _, err := repo.SaveDescription(ctx, domain.Description{PropertyID: ids[0], Summary: "Office in SW1A"}); err != nil {
		t.Fatalf("SaveDescription: %v", err)
	}
	if _, err := repo.SaveSaleTerms(ctx, domain.SaleTerms{PropertyID: ids[0], SaleType: domain.SaleNewLease, Price: 20000, PriceFrequency: domain.PerAnnum}); err != nil {
		t.Fatalf("SaveSaleTerms: %v", err)
	}
	if _, err := repo.SaveDocument(ctx, domain.Document{PropertyID: ids[0], Kind: "brochure", URL: "https://cdn.example.com/b.pdf"}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if _, err := repo.SaveImage(ctx, domain.Image{PropertyID: ids[0], URL: "https://cdn.example.com/1.jpg", Caption: "Front"}); err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	if _, err := repo.SaveLocation(ctx, domain.Location{PropertyID: ids[0], Postcode: "SW1A 1AA", Outcode: "SW1A", Source: "none"}); err != nil {
		t.Fatalf("SaveLocation: %v", err)
	}
	if _, err := repo.SaveImage(ctx, domain.Image{PropertyID: 999999, URL: "x"}); err == nil {
		t.Fatalf("expected foreign key violation for orphan image")
	}

	comps, err := repo.FindComparables(ctx, "SW1A")
	if err != nil {
		t.Fatalf("FindComparables: %v", err)
	}
	if len(comps) != 2 || comps[0].ExternalRef != "A" || comps[1].ExternalRef != "C" {
		t.Fatalf("unexpected comparables: %+v", comps)
	}
	if comps[0].Latitude == nil || *comps[0].Latitude != 51.501 || !comps[0].Planning.ListedBuilding {
		t.Fatalf("round trip lost fields: %+v", comps[0])
	}
	if got, _ := repo.FindComparables(ctx, "EC1A"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}

	// Reports: unavailable sources stay NULL
	rep := domain.Report{
		ID:              "0f8fad5b-d9cb-469f-a165-70867728950e",
		OwnerID:         "user-1",
		Postcode:        "SW1A 1AA",
		PropertyType:    domain.TypeOffice,
		Area:            domain.Area{Value: pfloat(1000)},
		ComparableCount: 2,
		EPCData:         map[string]any{"rating": "B"},
		AIAnalysis: domain.NarrativeAnalysis{
			Points:  []domain.NarrativePoint{{Number: 1, Title: "Transport", Summary: "Transport"}},
			Summary: "Well placed.",
		},
		PsychographicsAnalysis: domain.NarrativeAnalysis{Points: []domain.NarrativePoint{}, Summary: "Analysis is currently unavailable."},
		PredictedPrice:         &domain.PricePrediction{EffectiveArea: 1000, PricePerAreaPA: 18.34, PricePA: 18335},
		CreatedAt:              time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := repo.SaveReport(ctx, rep); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := repo.SaveReport(ctx, rep); err == nil {
		t.Fatalf("expected duplicate report id to fail")
	}

	got, err := repo.GetReport(ctx, rep.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.CrimeData != nil || got.PropertyDetails != nil {
		t.Fatalf("expected NULL sources to stay nil: %+v", got)
	}
	if got.PredictedPrice == nil || got.PredictedPrice.PricePA != 18335 {
		t.Fatalf("unexpected prediction: %+v", got.PredictedPrice)
	}
	if len(got.AIAnalysis.Points) != 1 || got.AIAnalysis.Points[0].Title != "Transport" {
		t.Fatalf("unexpected analysis: %+v", got.AIAnalysis)
	}
	if got.EPCData["rating"] != "B" || !got.CreatedAt.Equal(rep.CreatedAt) {
		t.Fatalf("unexpected report: %+v", got)
	}

	if _, err := repo.GetReport(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
