package services

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ArchiveService bundles a company's stored documents into a tar.gz
type ArchiveService struct {
	db      *gorm.DB
	storage *DocumentStorage
	audit   *AuditRecorder
	now     Clock
}

func NewArchiveService(db *gorm.DB, storage *DocumentStorage, audit *AuditRecorder, clock Clock) *ArchiveService {
	return &ArchiveService{db: db, storage: storage, audit: audit, now: systemClock(clock)}
}

type archiveEntry struct {
	ref  string
	name string
}

// WriteCompanyArchive writes every license document and remittance proof of
// the company to w and returns a download name. Files missing from disk are
// skipped.
func (s *ArchiveService) WriteCompanyArchive(ctx context.Context, actor Actor, companyID uint, w io.Writer) (string, int, error) {
	if err := actor.require(policy.ExportDocuments); err != nil {
		return "", 0, err
	}

	db := s.db.WithContext(ctx)
	var company models.Company
	if err := db.First(&company, companyID).Error; err != nil {
		return "", 0, lookupErr(err, ErrCompanyNotFound)
	}

	var licenses []models.License
	if err := db.Where("company_id = ? AND document_path <> ''", companyID).Order("id").Find(&licenses).Error; err != nil {
		return "", 0, persistence(err)
	}
	var remittances []models.Remittance
	if err := db.Where("company_id = ? AND proof_path <> ''", companyID).Order("id").Find(&remittances).Error; err != nil {
		return "", 0, persistence(err)
	}

	entries := make([]archiveEntry, 0, len(licenses)+len(remittances))
	for _, l := range licenses {
		entries = append(entries, archiveEntry{
			ref:  l.DocumentPath,
			name: path.Join(CategoryLicenses, fmt.Sprintf("%d_%s", l.ID, path.Base(l.DocumentPath))),
		})
	}
	for _, r := range remittances {
		entries = append(entries, archiveEntry{
			ref:  r.ProofPath,
			name: path.Join(CategoryRemittances, fmt.Sprintf("%d_%s", r.ID, path.Base(r.ProofPath))),
		})
	}

	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	written := 0
	for _, e := range entries {
		ok, err := s.addFile(tarWriter, e)
		if err != nil {
			return "", 0, fmt.Errorf("failed to create archive: %w", err)
		}
		if ok {
			written++
		}
	}

	if err := tarWriter.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to create archive: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to create archive: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionExported,
		EntityType: models.EntityCompany,
		EntityID:   company.ID,
		Details:    fmt.Sprintf("Exported %d documents of company %s", written, company.Name),
	})

	name := fmt.Sprintf("%s_documents_%s.tar.gz", slug.Make(company.Name), s.now().Format("20060102_150405"))
	return name, written, nil
}

func (s *ArchiveService) addFile(tw *tar.Writer, e archiveEntry) (bool, error) {
	f, err := s.storage.Open(e.ref)
	if err != nil {
		log.Warn().Err(err).Str("ref", e.ref).Msg("stored document missing, skipping")
		return false, nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return false, err
	}
	header.Name = e.name
	header.ModTime = info.ModTime().Truncate(time.Second)

	if err := tw.WriteHeader(header); err != nil {
		return false, err
	}
	if _, err := io.Copy(tw, f); err != nil {
		return false, err
	}
	return true, nil
}
