package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type App struct {
	DB  *pgxpool.Pool
	Log *zap.Logger

	// Cache is optional; a nil SlotCache is a no-op.
	Cache *SlotCache
}

const dateLayout = "2006-01-02"
