package orgs

import (
	"context"
	"fmt"
)

// tierMemberLimits maps a quota tier to its member ceiling. Device and group
// ceilings live with their own services; membership is the only quota this
// package enforces.
var tierMemberLimits = map[QuotaTier]int64{
	QuotaTierSmall:     25,
	QuotaTierMedium:    250,
	QuotaTierLarge:     2500,
	QuotaTierUnlimited: 1 << 40,
}

// CheckMemberQuota fails with QuotaExceededError when the organization has
// reached its member ceiling for its quota tier.
func (s *PostgresService) CheckMemberQuota(ctx context.Context, orgID int64) error {
	var tier QuotaTier
	var current int64
	query := `
		SELECT o.quota_tier, COUNT(m.id)
		FROM organizations o
		LEFT JOIN org_memberships m ON m.organization_id = o.id
		WHERE o.id = $1
		GROUP BY o.quota_tier
	`
	if err := s.db.QueryRowContext(ctx, query, orgID).Scan(&tier, &current); err != nil {
		return fmt.Errorf("failed to check member quota: %w", err)
	}

	limit, ok := tierMemberLimits[tier]
	if !ok {
		limit = tierMemberLimits[QuotaTierSmall]
	}
	if current >= limit {
		return &QuotaExceededError{Resource: "members", Current: current, Limit: limit}
	}
	return nil
}
