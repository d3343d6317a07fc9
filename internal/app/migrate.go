package app

import (
	"fmt"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/data/db"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

// Migrate applies pending schema migrations without wiring the rest of the app.
func Migrate(cfg *config.Config, log *logger.Logger) error {
	pg, err := db.NewPostgresService(cfg, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	defer pg.Close()
	return db.RunMigrations(pg.DB(), log)
}
