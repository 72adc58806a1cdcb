package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/g3/tornado/internal/domain"
)

// BugReportSubmission holds values for filing a bug report.
type BugReportSubmission struct {
	Description           string
	PageURL               string
	Screenshot            []byte
	ScreenshotContentType string
}

// BugReportView is a report with a short-lived screenshot link.
type BugReportView struct {
	Report        domain.BugReport
	ScreenshotURL string
}

// SubmitBugReport files a report and stores its screenshot when one is attached.
func (s *Service) SubmitBugReport(ctx context.Context, actor domain.ActorContext, in BugReportSubmission) (domain.BugReport, error) {
	id := s.idGen()
	key := ""
	if len(in.Screenshot) > 0 {
		if s.objects == nil {
			return domain.BugReport{}, ErrScreenshotsDisabled
		}
		if len(in.Screenshot) > s.cfg.MaxScreenshotBytes {
			return domain.BugReport{}, ErrScreenshotTooLarge
		}
		contentType := strings.TrimSpace(in.ScreenshotContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		key = "bug-reports/" + id + screenshotExt(contentType)
		if err := s.objects.PutObject(ctx, key, contentType, in.Screenshot); err != nil {
			return domain.BugReport{}, fmt.Errorf("store screenshot: %w", err)
		}
	}
	report, err := domain.NewBugReport(domain.BugReportInput{
		ID:             id,
		ReporterUserID: actor.UserID,
		Description:    in.Description,
		PageURL:        in.PageURL,
		ScreenshotKey:  key,
	}, s.clock())
	if err != nil {
		return domain.BugReport{}, err
	}
	if err := s.repo.CreateBugReport(withActor(ctx, actor), report); err != nil {
		return domain.BugReport{}, err
	}
	return report, nil
}

// ListBugReports lists the inbox, open reports first; admin only.
func (s *Service) ListBugReports(ctx context.Context, actor domain.ActorContext) ([]BugReportView, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminRequired
	}
	reports, err := s.repo.ListBugReports(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(reports, func(a, b domain.BugReport) int {
		if a.Status != b.Status {
			if a.Status == domain.BugStatusOpen {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	out := make([]BugReportView, 0, len(reports))
	for _, r := range reports {
		view := BugReportView{Report: r}
		if r.ScreenshotKey != "" && s.objects != nil {
			url, err := s.objects.PresignedURL(ctx, r.ScreenshotKey, s.cfg.ScreenshotURLTTL)
			if err != nil {
				return nil, fmt.Errorf("presign %s: %w", r.ScreenshotKey, err)
			}
			view.ScreenshotURL = url
		}
		out = append(out, view)
	}
	return out, nil
}

// ResolveBugReport marks a report resolved; admin only.
func (s *Service) ResolveBugReport(ctx context.Context, actor domain.ActorContext, reportID string) (domain.BugReport, error) {
	if !actor.IsAdmin() {
		return domain.BugReport{}, ErrAdminRequired
	}
	report, err := s.repo.GetBugReport(ctx, strings.TrimSpace(reportID))
	if err != nil {
		return domain.BugReport{}, err
	}
	if err := report.Resolve(s.clock()); err != nil {
		return domain.BugReport{}, err
	}
	if err := s.repo.UpdateBugReport(withActor(ctx, actor), report); err != nil {
		return domain.BugReport{}, err
	}
	return report, nil
}

func screenshotExt(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
