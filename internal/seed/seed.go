// Package seed bootstraps reference data so a fresh database is usable
// without manual setup.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/taskforge/internal/plan/domain"
	"gorm.io/gorm"
)

type planSeed struct {
	code      string
	name      string
	aiQuota   int
	unlimited bool
	priceJPY  int64
}

var defaultPlans = []planSeed{
	{code: plandomain.FreePlanCode, name: "Free", aiQuota: 450},
	{code: "pro", name: "Pro", aiQuota: 1500, priceJPY: 980},
	{code: "unlimited", name: "Unlimited", unlimited: true, priceJPY: 2980},
}

// EnsureDefaultPlans inserts the built-in subscription tiers when they are
// missing. Existing rows are left untouched so operators can tune quotas
// in place.
func EnsureDefaultPlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range defaultPlans {
			var count int64
			if err := tx.Model(&plandomain.Plan{}).Where("code = ?", p.code).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			plan := &plandomain.Plan{
				ID:        node.Generate(),
				Code:      p.code,
				Name:      p.name,
				AIQuota:   p.aiQuota,
				Unlimited: p.unlimited,
				PriceJPY:  p.priceJPY,
			}
			if err := tx.Create(plan).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
