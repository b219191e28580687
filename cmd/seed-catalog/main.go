// Command seed-catalog loads the bike catalog from a JSON file (optionally
// gzip-compressed) into the database and provisions an API key for testing.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/forez0/bikeshop/internal/domain/auth"
	"github.com/forez0/bikeshop/internal/domain/catalog"
	"github.com/forez0/bikeshop/internal/storage/postgres"
)

type bikeJSON struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Suspension  string          `json:"suspension,omitempty"`
	WeightKg    decimal.Decimal `json:"weight_kg,omitempty"`
	HasBasket   bool            `json:"has_basket,omitempty"`
}

func main() {
	var (
		databaseURL  string
		bikesFile    string
		apiKey       string
		apiKeyPepper string
		userEmail    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&bikesFile, "bikes-file", "db/seed/bikes.json", "path to bikes JSON file (.gz supported)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or BIKESHOP_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BIKESHOP_API_KEY_PEPPER env)")
	flag.StringVar(&userEmail, "user-email", "rider@example.com", "email of the seeded test user")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("BIKESHOP_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or BIKESHOP_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("BIKESHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, bikesFile, apiKey, apiKeyPepper, userEmail); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, bikesFile, apiKey, pepper, userEmail string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedBikes(ctx, postgres.NewBikeRepository(pool), bikesFile); err != nil {
		return errors.Wrap(err, "seed bikes")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper, userEmail); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedBikes(ctx context.Context, repo *postgres.BikeRepository, path string) error {
	slog.Info("reading bikes file", slog.String("path", path))

	data, err := readMaybeGzipped(path)
	if err != nil {
		return errors.Wrap(err, "read bikes file")
	}

	var bikes []bikeJSON
	if err := json.Unmarshal(data, &bikes); err != nil {
		return errors.Wrap(err, "parse bikes JSON")
	}

	lg, err := zap.NewProduction()
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer func() { _ = lg.Sync() }()
	factory := catalog.NewFactory(lg)

	slog.Info("creating bikes", slog.Int("count", len(bikes)))

	for _, b := range bikes {
		bike := factory.CreateBike(b.Type, b.Name, b.Price, b.Description, catalog.SpecAttrs{
			Suspension: b.Suspension,
			WeightKg:   b.WeightKg,
			HasBasket:  b.HasBasket,
		})
		if err := repo.Create(ctx, bike); err != nil {
			return errors.Wrapf(err, "create bike %s", b.Name)
		}

		slog.Info("created bike",
			slog.String("id", bike.ID),
			slog.String("name", bike.Name),
			slog.String("specifics", bike.Specifics()),
		)
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper, userEmail string) error {
	slog.Info("seeding API key", slog.String("user_email", userEmail))

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	info := &auth.KeyInfo{
		ID:      "default",
		KeyHash: keyHash,
		User: auth.User{
			ID:    uuid.New().String(),
			Email: userEmail,
			Name:  "Test rider",
		},
		Active: true,
	}
	if err := repo.CreateKey(ctx, info); err != nil {
		return errors.Wrap(err, "create api key")
	}

	return nil
}

// readMaybeGzipped reads the whole file, transparently decompressing .gz
// files.
func readMaybeGzipped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	return io.ReadAll(r)
}
