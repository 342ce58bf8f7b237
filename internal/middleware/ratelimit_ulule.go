package middleware

import (
	"context"
	"net/http"

	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const fallbackRate = "5-S"

// RateLimitFromDB builds per-client-IP rate limiting backed by Redis.
// The rate is read from the database at startup; when no row exists
// yet, defaultRate is persisted so operators see the effective value
// via the configure CLI.
func RateLimitFromDB(redisClient *redis.Client, repo *database.RatelimitConfigRepository, defaultRate string) (func(http.Handler) http.Handler, error) {
	if defaultRate == "" {
		defaultRate = fallbackRate
	}

	ctx := context.Background()
	stored, err := repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	rateStr := defaultRate
	if stored != nil && stored.Rate != "" {
		rateStr = stored.Rate
	} else if err := repo.Set(ctx, &models.RatelimitConfig{Rate: defaultRate}); err != nil {
		return nil, err
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		return nil, err
	}
	store, err := redisstore.NewStore(redisClient)
	if err != nil {
		return nil, err
	}

	mw := stdlibmw.NewMiddleware(
		limiter.New(store, rate),
		stdlibmw.WithKeyGetter(func(r *http.Request) string {
			return request.ClientIP(r)
		}),
	)
	return mw.Handler, nil
}
