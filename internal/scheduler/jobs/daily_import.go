package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhangwt/voltrend/backend/internal/importer"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

// processedDir is where imported files are moved so the next run does
// not pick them up again.
const processedDir = "processed"

// DailyImportJob sweeps the watch directory after market close and
// imports every volume file it finds. Files go to the processed
// subdirectory once handed off.
type DailyImportJob struct {
	orchestrator *importer.Orchestrator
	watchDir     string
	logger       *logger.Logger
}

// NewDailyImportJob creates a new daily import job
func NewDailyImportJob(orchestrator *importer.Orchestrator, watchDir string, log *logger.Logger) *DailyImportJob {
	return &DailyImportJob{
		orchestrator: orchestrator,
		watchDir:     watchDir,
		logger:       log,
	}
}

// Name returns the job name
func (j *DailyImportJob) Name() string {
	return "daily_import"
}

// Schedule returns the cron schedule (17:30 on trading weekdays)
func (j *DailyImportJob) Schedule() string {
	return "0 30 17 * * 1-5"
}

// Run scans the watch directory and imports each file found.
func (j *DailyImportJob) Run(ctx context.Context) error {
	entries, err := os.ReadDir(j.watchDir)
	if err != nil {
		if os.IsNotExist(err) {
			j.logger.Debugf("Watch dir %s does not exist, nothing to import", j.watchDir)
			return nil
		}
		return fmt.Errorf("read watch dir: %w", err)
	}

	var imported, failed int
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := j.importFile(ctx, entry.Name()); err != nil {
			j.logger.WithError(err).Errorf("Import of %s failed", entry.Name())
			failed++
			continue
		}
		imported++
	}

	if imported > 0 || failed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"imported": imported,
			"failed":   failed,
		}).Info("Daily import sweep finished")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, imported+failed)
	}
	return nil
}

func (j *DailyImportJob) importFile(ctx context.Context, name string) error {
	path := filepath.Join(j.watchDir, name)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat %s: %w", name, err)
	}

	// StartImport partitions the whole file before returning, so the
	// file handle can be released and the file moved right after.
	job, err := j.orchestrator.StartImport(ctx, name, info.Size(), f)
	f.Close()
	if err != nil {
		return err
	}

	j.logger.Infof("Queued %s as job %s (%d dates)", name, job.ID, job.TotalDates)

	dest := filepath.Join(j.watchDir, processedDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}
	if err := os.Rename(path, filepath.Join(dest, name)); err != nil {
		return fmt.Errorf("move %s to processed: %w", name, err)
	}
	return nil
}
