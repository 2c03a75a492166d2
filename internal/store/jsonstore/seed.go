package jsonstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yenix/go-store-backend/internal/auth"
	"github.com/yenix/go-store-backend/internal/domain"
	"github.com/yenix/go-store-backend/internal/store"
)

// defaultAdminPassword is the seed credential for the baseline administrative
// account. It is stored hashed; the setup flow replaces the account on fresh
// deployments.
const defaultAdminPassword = "admin"

// seedSnapshot builds the deterministic baseline dataset written on first run
// with no existing file: sample categories and products, one administrative
// account, default settings, and an initialization log entry.
func seedSnapshot() (*Snapshot, error) {
	now := time.Now().UTC()

	adminHash, err := auth.HashPassword(defaultAdminPassword)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Categories: []domain.Category{
			{
				ID:          1,
				Name:        "ACCOUNT",
				Description: "เลือกดูบัญชีที่ต้องการ",
				ImageURL:    "https://img5.pic.in.th/file/secure-sv1/yonex78756deec19e4cab.png",
			},
			{
				ID:          2,
				Name:        "PROGRAM",
				Description: "เลือกดูโปรแกรมที่ต้องการ",
				ImageURL:    "",
			},
		},
		Products: []domain.Product{
			{
				ID:            1,
				CategoryID:    1,
				Name:          "Grand Piece Online",
				Price:         decimal.New(4900, -2),
				Stock:         5,
				Description:   "ไก่หลัก",
				ImageURL:      "https://tr.rbxcdn.com/1802d334cb50de3257859b9f528d25ca/768/432/Image/Png",
				Features:      domain.StringList{"Level 425-475", "Haki V1", "Geppo"},
				SupportedMaps: domain.StringList{"Grand Piece Online"},
			},
			{
				ID:            2,
				CategoryID:    1,
				Name:          "Rogue Piece",
				Price:         decimal.New(3500, -2),
				Stock:         10,
				Description:   "ไก่ตัน",
				ImageURL:      "https://tr.rbxcdn.com/1802d334cb50de3257859b9f528d25ca/768/432/Image/Png",
				Features:      domain.StringList{"Level Max", "God Human"},
				SupportedMaps: domain.StringList{"Rogue Piece"},
			},
		},
		Users: []domain.User{
			{
				ID:           1,
				Username:     "admin",
				PasswordHash: adminHash,
				Role:         domain.RoleSuperAdmin,
				Status:       domain.StatusActive,
				LastLogin:    domain.Timestamp{Time: now},
				CreatedAt:    now,
			},
		},
		Orders:   []domain.Order{},
		Settings: store.DefaultSettings(),
		Logs: []domain.LogEntry{
			{
				ID:        1,
				Action:    "System Init",
				Details:   "Seeded baseline dataset",
				Actor:     store.ActorSystem,
				Timestamp: now,
			},
		},
	}
	return snap, nil
}
