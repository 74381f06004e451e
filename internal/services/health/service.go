package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Service encapsulates health-related checks.
type Service struct {
	DB              *sql.DB
	StorageProvider string
}

// NewService constructs a new health service. db may be nil when running on
// in-memory repositories.
func NewService(db *sql.DB, storageProvider string) *Service {
	return &Service{DB: db, StorageProvider: storageProvider}
}

// Status reports dependency health and whether the service is fit to serve.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	out := map[string]any{"storage": s.StorageProvider}
	ok := true
	if s.DB == nil {
		out["database"] = "memory"
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			out["database"] = "unreachable"
			ok = false
		} else {
			out["database"] = "ok"
		}
	}
	out["ok"] = ok
	return out, ok
}
