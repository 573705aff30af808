package jobboard

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// GetStatistics aggregates the Board and both registries in one composed read.
// The three scans run concurrently and fail independently. A total whose
// detailed scan failed or dropped entries falls back to the registry's stored
// count and marks the result Partial; a registry that cannot be read at all
// contributes zero.
func (s *Service) GetStatistics(ctx context.Context) (*Statistics, error) {
	var (
		jobs      *ScanResult[Job]
		users     *ScanResult[UserProfile]
		employers *ScanResult[EmployerProfile]
	)

	var g errgroup.Group
	g.Go(func() error {
		jobs = scanForStats(ctx, s, s.jobs, s.cfg.BoardID)
		return nil
	})
	g.Go(func() error {
		users = scanForStats(ctx, s, s.users, s.cfg.UserRegistryID)
		return nil
	})
	g.Go(func() error {
		employers = scanForStats(ctx, s, s.employers, s.cfg.EmployerRegistryID)
		return nil
	})
	_ = g.Wait()

	stats := &Statistics{}
	var partial bool

	stats.TotalJobs, partial = total(jobs)
	stats.Partial = stats.Partial || partial
	stats.TotalUsers, partial = total(users)
	stats.Partial = stats.Partial || partial
	stats.TotalEmployers, partial = total(employers)
	stats.Partial = stats.Partial || partial

	if jobs != nil {
		for _, j := range jobs.Records {
			if j.IsOpen() {
				stats.ActiveJobs++
			}
			if j.IsFilled() {
				stats.FilledJobs++
			}
			stats.TotalApplications += j.ApplicationCount
		}
	}
	return stats, nil
}

func scanForStats[T any](ctx context.Context, s *Service, scanner *RegistryScanner[T], registryID string) *ScanResult[T] {
	res, err := scanner.Scan(ctx, registryID)
	if err != nil {
		s.degrade("GetStatistics", err, logrus.Fields{"object_id": registryID})
		return nil
	}
	return res
}

// total picks the detailed count when the scan is complete and the stored
// count otherwise.
func total[T any](res *ScanResult[T]) (uint64, bool) {
	if res == nil {
		return 0, true
	}
	if res.Complete() {
		return uint64(len(res.Records)), false
	}
	return res.Count, true
}
