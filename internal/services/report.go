package services

import (
	"context"
	"fmt"
	"strings"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/report"
)

type ReportService struct {
	licenses    *LicenseService
	remittances *RemittanceService
	audit       *AuditRecorder
	now         Clock
}

func NewReportService(licenses *LicenseService, remittances *RemittanceService, audit *AuditRecorder, clock Clock) *ReportService {
	return &ReportService{licenses: licenses, remittances: remittances, audit: audit, now: systemClock(clock)}
}

// Export is a rendered report ready for download
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
	Records     int
}

// ExportLicenses renders the actor's licenses, filtered and ordered by expiry
func (s *ReportService) ExportLicenses(ctx context.Context, actor Actor, f LicenseFilter, format string) (*Export, error) {
	formatter, err := report.New(format)
	if err != nil {
		return nil, invalid("format", err.Error())
	}

	licenses, err := s.licenses.List(ctx, actor, f)
	if err != nil {
		return nil, err
	}

	now := s.now()
	data, err := formatter.Render(report.LicenseTable(licenses, now))
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionExported,
		EntityType: models.EntityLicense,
		Details:    fmt.Sprintf("Exported licenses to %s", strings.ToUpper(format)),
	})

	return &Export{
		Filename:    fmt.Sprintf("licenses_report_%s.%s", now.Format("20060102_150405"), formatter.Extension()),
		ContentType: formatter.ContentType(),
		Data:        data,
		Records:     len(licenses),
	}, nil
}

// ExportRemittances renders the actor's remittances, newest period first
func (s *ReportService) ExportRemittances(ctx context.Context, actor Actor, f RemittanceFilter, format string) (*Export, error) {
	formatter, err := report.New(format)
	if err != nil {
		return nil, invalid("format", err.Error())
	}

	remittances, err := s.remittances.List(ctx, actor, f)
	if err != nil {
		return nil, err
	}

	now := s.now()
	data, err := formatter.Render(report.RemittanceTable(remittances, now))
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionExported,
		EntityType: models.EntityRemittance,
		Details:    fmt.Sprintf("Exported remittances to %s", strings.ToUpper(format)),
	})

	return &Export{
		Filename:    fmt.Sprintf("remittances_report_%s.%s", now.Format("20060102_150405"), formatter.Extension()),
		ContentType: formatter.ContentType(),
		Data:        data,
		Records:     len(remittances),
	}, nil
}
