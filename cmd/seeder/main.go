// cmd/seeder/main.go

// Seeder loads an account, a campaign, and its contact list from a JSON
// seed file into the engine's stores. Intended for local development
// and demo environments.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"outreach-engine/internal/common/config"
	"outreach-engine/internal/common/database"
	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/common/validation"
	"outreach-engine/internal/engine/dedup"
	"outreach-engine/internal/engine/sequence"
	"outreach-engine/internal/models"
	"outreach-engine/internal/store"
)

type seedFile struct {
	Account  *models.Account         `json:"account"`
	Campaign *models.Campaign        `json:"campaign"`
	Contacts []sequence.ContactInput `json:"contacts"`
}

func main() {
	var path string
	flag.StringVar(&path, "file", "seed.json", "path to the JSON seed file")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		zapLog.Fatal("seed file read failed", zap.Error(err))
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		zapLog.Fatal("seed file parse failed", zap.Error(err))
	}
	if seed.Campaign == nil {
		zapLog.Fatal("seed file has no campaign")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		zapLog.Fatal("postgres ping failed", zap.Error(err))
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis connection failed", zap.Error(err))
	}
	defer rdb.Close()

	st := store.New(pg.DB, log)

	if seed.Account != nil {
		if seed.Account.ID == "" {
			seed.Account.ID = uuid.New().String()
		}
		if seed.Account.ConnectionStatus == "" {
			seed.Account.ConnectionStatus = models.ConnectionStatusConnected
			seed.Account.Active = true
		}
		if res := validation.ValidateAccount(seed.Account); !res.Valid {
			zapLog.Fatal("account validation failed", zap.String("reason", res.Error()))
		}
		if err := st.CreateAccount(ctx, seed.Account); err != nil {
			zapLog.Fatal("account insert failed", zap.Error(err))
		}
		zapLog.Info("account created", zap.String("accountId", seed.Account.ID))
	}

	if seed.Campaign.ID == "" {
		seed.Campaign.ID = uuid.New().String()
	}
	if seed.Campaign.Status == "" {
		seed.Campaign.Status = models.CampaignStatusActive
	}
	if seed.Account != nil {
		seed.Campaign.AccountID = seed.Account.ID
	}

	if res := validation.ValidateCampaign(seed.Campaign); !res.Valid {
		zapLog.Fatal("campaign validation failed", zap.String("reason", res.Error()))
	}
	if err := st.CreateCampaign(ctx, seed.Campaign); err != nil {
		zapLog.Fatal("campaign insert failed", zap.Error(err))
	}
	zapLog.Info("campaign created",
		zap.String("campaignId", seed.Campaign.ID),
		zap.String("type", string(seed.Campaign.Type)),
	)

	resolver := dedup.NewResolver(rdb.Client, st, log)
	enroller := sequence.NewEnroller(st, resolver, log)

	result, err := enroller.Enroll(ctx, seed.Campaign.ID, seed.Contacts)
	if err != nil {
		zapLog.Fatal("enrollment failed", zap.Error(err))
	}

	zapLog.Info("seed complete",
		zap.Int("enrolled", result.Enrolled),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("invalid", result.Invalid),
	)
}
