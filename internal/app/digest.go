package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/g3/tornado/internal/domain"
)

// DigestItem is one stale task in a follow-up digest.
type DigestItem struct {
	TaskID            string `json:"task_id"`
	ProjectName       string `json:"project_name"`
	Description       string `json:"description"`
	NextStep          string `json:"next_step,omitempty"`
	DaysSinceMovement int    `json:"days_since_movement"`
	DaysPastCadence   int    `json:"days_past_cadence"`
	ActiveGate        string `json:"active_gate,omitempty"`
}

// FollowUpDigest groups the stale tasks one contact owns.
type FollowUpDigest struct {
	ContactID   string       `json:"contact_id"`
	ContactName string       `json:"contact_name"`
	Email       string       `json:"email"`
	GeneratedAt time.Time    `json:"generated_at"`
	Items       []DigestItem `json:"items"`
}

// DigestRun summarizes one delivery pass.
type DigestRun struct {
	Digests int
	Sent    int
	Skipped int
}

// BuildDigests groups stale tasks by owner. Voided owners and owners without
// an email address get no digest.
func (s *Service) BuildDigests(ctx context.Context) ([]FollowUpDigest, int, error) {
	snap, err := s.loadWorld(ctx, "")
	if err != nil {
		return nil, 0, err
	}
	now := s.clock()
	byContact := make(map[string]*FollowUpDigest)
	skipped := 0
	for _, task := range snap.tasks {
		if !domain.IsStale(task, now) {
			continue
		}
		view := snap.view(task, now)
		item := DigestItem{
			TaskID:            task.ID,
			ProjectName:       view.ProjectName,
			Description:       task.Description,
			NextStep:          task.NextStep,
			DaysSinceMovement: view.DaysSinceMovement,
			DaysPastCadence:   domain.DaysPastCadence(task, now),
		}
		if view.ActiveGate != nil {
			item.ActiveGate = view.ActiveGate.Name
		}
		for _, ownerID := range task.OwnerIDs {
			idx := slices.IndexFunc(snap.contacts, func(c domain.Contact) bool { return c.ID == ownerID })
			if idx < 0 || snap.contacts[idx].Voided || snap.contacts[idx].Email == "" {
				skipped++
				continue
			}
			contact := snap.contacts[idx]
			digest, ok := byContact[contact.ID]
			if !ok {
				digest = &FollowUpDigest{
					ContactID:   contact.ID,
					ContactName: contact.Name,
					Email:       contact.Email,
					GeneratedAt: now.UTC(),
				}
				byContact[contact.ID] = digest
			}
			digest.Items = append(digest.Items, item)
		}
	}

	out := make([]FollowUpDigest, 0, len(byContact))
	for _, d := range byContact {
		slices.SortStableFunc(d.Items, func(a, b DigestItem) int {
			return b.DaysPastCadence - a.DaysPastCadence
		})
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b FollowUpDigest) int {
		return strings.Compare(strings.ToLower(a.ContactName), strings.ToLower(b.ContactName))
	})
	return out, skipped, nil
}

// SendDigests builds and delivers every digest. Delivery keeps going past
// individual failures and reports them joined.
func (s *Service) SendDigests(ctx context.Context) (DigestRun, error) {
	if s.notifier == nil {
		return DigestRun{}, ErrNotifierUnavailable
	}
	digests, skipped, err := s.BuildDigests(ctx)
	if err != nil {
		return DigestRun{}, err
	}
	run := DigestRun{Digests: len(digests), Skipped: skipped}
	var errs []error
	for _, d := range digests {
		if err := s.notifier.NotifyDigest(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("digest for %s: %w", d.ContactID, err))
			continue
		}
		run.Sent++
	}
	return run, errors.Join(errs...)
}
