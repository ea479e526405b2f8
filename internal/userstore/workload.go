package userstore

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/logwatch-alerts-go/pkg/applog"
)

// DefaultSlowDelay makes the slow step of the workload cross the slow threshold.
const DefaultSlowDelay = 6 * time.Second

// WorkloadResult summarizes one workload run.
type WorkloadResult struct {
	Found        int
	Modified     int64
	Deleted      int64
	Distribution []AgeBucket
}

// RunWorkload performs the sample sequence of user operations: find, insert,
// update, delete, aggregate and one deliberately slow lookup. Progress goes
// to the application log.
func RunWorkload(ctx context.Context, repo *Repository, log *applog.Logger, slowDelay time.Duration) (*WorkloadResult, error) {
	log.Info().Msg("Application started")
	res := &WorkloadResult{}

	users, err := repo.FindUsers(ctx, 25)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	res.Found = len(users)
	log.Info().Msgf("Found %d users aged 25 or older", res.Found)

	id, err := repo.InsertUser(ctx, User{Name: "John Doe", Age: 30, Email: "john@example.com"})
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	log.Info().Msgf("Inserted user with ID: %s", id.Hex())

	if res.Modified, err = repo.UpdateUserAge(ctx, id, 31); err != nil {
		return nil, fmt.Errorf("update user age: %w", err)
	}
	log.Info().Msgf("Updated %d user's age", res.Modified)

	if res.Deleted, err = repo.DeleteUser(ctx, id); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	log.Info().Msgf("Deleted %d user", res.Deleted)

	if res.Distribution, err = repo.AgeDistribution(ctx); err != nil {
		return nil, fmt.Errorf("age distribution: %w", err)
	}
	log.Info().Msgf("Age distribution: %v", res.Distribution)

	log.Info().Msg("Running a potentially slow query...")
	if _, err := repo.SlowFindOne(ctx, slowDelay); err != nil {
		return nil, fmt.Errorf("slow query: %w", err)
	}
	log.Info().Msg("Potentially slow query completed")

	log.Info().Msg("Application finished")
	return res, nil
}
