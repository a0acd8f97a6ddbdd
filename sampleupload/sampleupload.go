// Caninana
// Copyright (c) 2026, Caninana contributors

// Package sampleupload offloads quarantined sample content to an
// S3-compatible bucket in the background, queuing uploads so that
// quarantine itself never blocks on network I/O. Grounded on
// uploader/uploader.go's enqueue/background-drain/backlog-recovery
// design, retargeted from Suricata file-extraction verdicts to
// quarantine IDs.
package sampleupload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/minio/minio-go"

	"github.com/caninana/caninana/logging"
	"github.com/caninana/caninana/quarantineentry"
)

// entrySuffix names the companion metadata object uploaded alongside a
// quarantined sample's content.
const entrySuffix = ".entry.json"

// Credentials holds the data required to reach an S3-compatible endpoint.
type Credentials struct {
	Endpoint        string
	AccessKey       string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

type uploadJob struct {
	quarantineID string
	contentPath  string
	entryPath    string
}

// Uploader queues quarantined sample content for background upload to an
// S3-compatible bucket, and recovers any backlog left over in ScratchDir
// from a previous run that did not shut down cleanly.
type Uploader struct {
	creds      Credentials
	scratchDir string
	client     *minio.Client
	inChan     chan uploadJob
	closedChan chan bool
	logger     *logging.Logger
}

// New connects to the given S3-compatible endpoint, requeues any files
// left behind in scratchDir by a previous run, and starts the background
// upload goroutine.
func New(creds Credentials, scratchDir string, logger *logging.Logger) (*Uploader, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(scratchDir, 0o750); err != nil {
		return nil, err
	}

	client, err := minio.New(creds.Endpoint, creds.AccessKey, creds.SecretAccessKey, creds.UseSSL)
	if err != nil {
		return nil, err
	}

	u := &Uploader{
		creds:      creds,
		scratchDir: scratchDir,
		client:     client,
		inChan:     make(chan uploadJob, 10000),
		closedChan: make(chan bool),
		logger:     logger,
	}

	if err := u.enqueueBacklog(); err != nil {
		return nil, err
	}
	go u.processUploads()

	return u, nil
}

// Enqueue copies the file at contentPath into the scratch directory under
// entry's quarantine ID, writes a companion <quarantine_id>.entry.json
// carrying entry's metadata, and schedules both for background upload.
// Enqueue returns as soon as the scratch copies are durable; the network
// upload happens asynchronously.
func (u *Uploader) Enqueue(entry quarantineentry.Entry, contentPath string) error {
	destContentPath := filepath.Join(u.scratchDir, entry.QuarantineID)
	if err := copyFile(contentPath, destContentPath); err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	destEntryPath := filepath.Join(u.scratchDir, entry.QuarantineID+entrySuffix)
	if err := os.WriteFile(destEntryPath, encoded, 0o640); err != nil {
		return err
	}

	u.inChan <- uploadJob{quarantineID: entry.QuarantineID, contentPath: destContentPath, entryPath: destEntryPath}
	return nil
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (u *Uploader) processUploads() {
	for job := range u.inChan {
		size, err := u.client.FPutObject(u.creds.BucketName, job.quarantineID, job.contentPath,
			minio.PutObjectOptions{ContentType: "application/octet-stream"})
		if err != nil {
			u.logger.Error("SampleUploader", fmt.Sprintf("upload of %s failed: %s", job.quarantineID, err))
			continue
		}
		u.logger.Info("SampleUploader", fmt.Sprintf("uploaded %s (%d bytes)", job.quarantineID, size))
		if err := os.Remove(job.contentPath); err != nil {
			u.logger.Warning("SampleUploader", fmt.Sprintf("could not remove uploaded scratch file %s: %s", job.contentPath, err))
		}

		if job.entryPath == "" {
			continue
		}
		entryKey := job.quarantineID + entrySuffix
		if _, err := u.client.FPutObject(u.creds.BucketName, entryKey, job.entryPath,
			minio.PutObjectOptions{ContentType: "application/json"}); err != nil {
			u.logger.Error("SampleUploader", fmt.Sprintf("upload of %s failed: %s", entryKey, err))
			continue
		}
		u.logger.Info("SampleUploader", "uploaded "+entryKey)
		if err := os.Remove(job.entryPath); err != nil {
			u.logger.Warning("SampleUploader", fmt.Sprintf("could not remove uploaded scratch file %s: %s", job.entryPath, err))
		}
	}
	close(u.closedChan)
}

var backlogPattern = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)

// enqueueBacklog re-queues any quarantine ID whose content file survived a
// previous run's shutdown. A missing companion entry file (e.g. the
// process died between the content copy and the entry WriteFile in
// Enqueue) is tolerated:
// the content still uploads, just without metadata.
func (u *Uploader) enqueueBacklog() error {
	files, err := os.ReadDir(u.scratchDir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() || !backlogPattern.MatchString(f.Name()) {
			continue
		}
		quarantineID := f.Name()
		entryPath := filepath.Join(u.scratchDir, quarantineID+entrySuffix)
		if _, err := os.Stat(entryPath); err != nil {
			entryPath = ""
		}
		u.logger.Info("SampleUploader", "recovering backlog scratch file "+quarantineID)
		u.inChan <- uploadJob{quarantineID: quarantineID, contentPath: filepath.Join(u.scratchDir, quarantineID), entryPath: entryPath}
	}
	return nil
}

// Stop drains the pending queue and waits for the background goroutine to
// exit.
func (u *Uploader) Stop() {
	close(u.inChan)
	<-u.closedChan
}
