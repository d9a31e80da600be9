package scheduler

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Paths locates the four persisted crawler stores.
type Paths struct {
	Documents    string
	Fingerprints string
	Frontier     string
	Pending      string
}

// StatePaths returns the store locations under dir.
func StatePaths(dir string) Paths {
	return Paths{
		Documents:    filepath.Join(dir, "documents.json"),
		Fingerprints: filepath.Join(dir, "fingerprints.json"),
		Frontier:     filepath.Join(dir, "frontier.json"),
		Pending:      filepath.Join(dir, "pending.json"),
	}
}

// checkpoint saves every store. Failures are logged and counted; the joined
// error is returned for the final flush.
func (s *Scheduler) checkpoint() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	var errs []error
	record := func(store string, err error) {
		if err == nil {
			return
		}
		s.logger.Error("saving crawl state failed", "store", store, "error", err)
		if s.metrics != nil {
			s.metrics.PersistErrorsTotal.WithLabelValues(store).Inc()
		}
		errs = append(errs, fmt.Errorf("saving %s: %w", store, err))
	}

	record("documents", s.store.Save())
	record("fingerprints", s.fingerprints.Save(s.paths.Fingerprints))
	record("frontier", s.frontier.Save(s.paths.Frontier, s.paths.Pending))

	if len(errs) == 0 {
		s.logger.Debug("crawl state saved", "documents", s.store.Len(), "pending", s.frontier.Len())
	}
	return errors.Join(errs...)
}
