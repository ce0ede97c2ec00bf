package service

import (
	"context"
	"errors"

	"github.com/Melenium2/dht/internal/kbuckets"
	"github.com/Melenium2/dht/internal/node"

	"github.com/cenkalti/backoff/v4"
)

// ErrEmptyBucket returned by CheckBucket if there is nothing to check.
var ErrEmptyBucket = errors.New("bucket is empty")

// probeLater starts background probe of candidate which holds the place
// newcomer wants. Only one probe per candidate runs at a time, newcomers
// which can not be resolved now go to the replacement cache.
func (s *Service) probeLater(candidate, newcomer node.Node) {
	s.mu.Lock()

	if _, ok := s.probing[candidate.ID]; ok {
		s.mu.Unlock()
		s.addReplacement(newcomer)

		return
	}

	if !s.probes.TryAcquire(1) {
		s.mu.Unlock()
		s.log.Debugf("too many probes in flight, node %s goes to replacements", newcomer)
		s.addReplacement(newcomer)

		return
	}

	s.probing[candidate.ID] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.probes.Release(1)

		s.resolveFull(candidate, newcomer)

		s.mu.Lock()
		delete(s.probing, candidate.ID)
		s.mu.Unlock()
	}()
}

// resolveFull keeps alive candidate and drops newcomer to replacements,
// dead candidate is replaced by newcomer.
func (s *Service) resolveFull(candidate, newcomer node.Node) {
	err := s.probe(s.ctx, candidate)
	if err == nil {
		s.log.Debugf("node %s is alive, keep it instead of %s", candidate, newcomer)

		s.reinsert(candidate)
		s.addReplacement(newcomer)

		return
	}

	if s.ctx.Err() != nil {
		return
	}

	s.log.Warnf("node %s did not answer probe, replacing with %s", candidate, newcomer)

	s.table.Remove(candidate.ID)

	res, err := s.table.Update(newcomer)
	if err != nil {
		s.log.Debugf("node %s is ignored, reason %s", newcomer, err)

		return
	}

	if res.Outcome == kbuckets.Full {
		s.addReplacement(newcomer)
	}
}

// probe pings n up to ProbeRetries+1 times, each ping bounded by RPCTimeout.
func (s *Service) probe(ctx context.Context, n node.Node) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.ProbeInterval), uint64(s.cfg.ProbeRetries)),
		ctx,
	)

	return backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.RPCTimeout)
		defer cancel()

		return s.client.Ping(callCtx, n)
	}, policy)
}

// evict removes n from the table and promotes replacement of its bucket.
func (s *Service) evict(n node.Node) {
	if !s.table.Remove(n.ID) {
		return
	}

	index, err := node.BucketIndex(s.table.Self(), n.ID)
	if err != nil {
		return
	}

	s.promote(index)
}

// promote moves the freshest replacement of the bucket into it.
func (s *Service) promote(index int) {
	replacement, ok := s.table.PopReplacement(index)
	if !ok {
		return
	}

	if _, err := s.table.Update(replacement); err != nil {
		s.log.Debugf("can not promote node %s, reason %s", replacement, err)

		return
	}

	s.log.Debugf("node %s promoted from replacements to bucket %d", replacement, index)
}

func (s *Service) addReplacement(n node.Node) {
	if err := s.table.AddReplacement(n); err != nil {
		s.log.Debugf("node %s is not kept as replacement, reason %s", n, err)
	}
}

// CheckBucket verifies the least-recently-seen node of the bucket. The node
// is taken out of the table while probing, so no lock is held during the
// network call. Alive node is put back to the most-recently-seen end, dead
// one is replaced by the freshest replacement candidate.
func (s *Service) CheckBucket(ctx context.Context, index int) error {
	oldest, ok := s.table.PopOldest(index)
	if !ok {
		return ErrEmptyBucket
	}

	if err := s.probe(ctx, oldest); err != nil {
		if ctx.Err() != nil {
			// probe was interrupted, node is not proven dead.
			s.reinsert(oldest)

			return ctx.Err()
		}

		s.log.Warnf("node %s from bucket %d is dead, reason %s", oldest, index, err)

		s.mu.Lock()
		delete(s.failures, oldest.ID)
		s.mu.Unlock()

		s.promote(index)

		return err
	}

	s.reinsert(oldest)

	return nil
}

func (s *Service) reinsert(n node.Node) {
	res, err := s.table.Update(n)
	if err != nil {
		s.log.Debugf("can not reinsert node %s, reason %s", n, err)

		return
	}

	if res.Outcome == kbuckets.Full {
		s.addReplacement(n)
	}
}
