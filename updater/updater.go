// Caninana
// Copyright (c) 2026, Caninana contributors

// Package updater checks a remote signature distribution point for a
// newer signature database and, if found, downloads and atomically
// installs it. Grounded on signature_updater.cpp, with the
// possibly-xz-compressed download handled the way
// plugins/yarascanner/helper.go handles xz-or-plain rule sources.
package updater

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/xi2/xz"

	"github.com/caninana/caninana/cerrors"
	"github.com/caninana/caninana/logging"
	"github.com/caninana/caninana/signature"
)

// Fetcher abstracts the HTTP calls the updater needs, so tests can inject
// a mock transport instead of hitting the network.
type Fetcher interface {
	Get(url string) (*http.Response, error)
}

type httpFetcher struct{}

func (httpFetcher) Get(url string) (*http.Response, error) { return http.Get(url) }

// Updater checks and applies signature database updates from a fixed
// base URL.
type Updater struct {
	versionURL  string
	databaseURL string
	xzURL       string
	UseXZ       bool
	fetcher     Fetcher
	logger      *logging.Logger
}

// New returns an Updater against baseURL, which is normalized to end in
// a trailing slash. A nil logger falls back to logging.Default().
func New(baseURL string, logger *logging.Logger) *Updater {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Updater{
		versionURL:  baseURL + "latest_version.txt",
		databaseURL: baseURL + "signatures.json",
		xzURL:       baseURL + "signatures.json.xz",
		fetcher:     httpFetcher{},
		logger:      logger,
	}
}

// WithFetcher overrides the Fetcher used for HTTP calls, for testing.
func (u *Updater) WithFetcher(f Fetcher) *Updater {
	u.fetcher = f
	return u
}

// WithXZ enables downloading the xz-compressed signatures.json.xz variant
// instead of the plain signatures.json.
func (u *Updater) WithXZ() *Updater {
	u.UseXZ = true
	return u
}

// CheckForUpdates compares the local database's version against the
// remote's latest_version.txt, and if the remote is newer, downloads and
// atomically installs it at currentDBPath. It returns true if an update
// was applied.
func (u *Updater) CheckForUpdates(currentDBPath string) (bool, error) {
	u.logger.Info("SignatureUpdater", "Checking for updates...")

	localVersion := signature.Version(currentDBPath)
	u.logger.Info("SignatureUpdater", "Local database version: "+localVersion)

	remoteVersion, err := u.fetchRemoteVersion()
	if err != nil {
		return false, err
	}
	u.logger.Info("SignatureUpdater", "Remote database version: "+remoteVersion)

	if remoteVersion <= localVersion {
		u.logger.Info("SignatureUpdater", "Signature database is already up to date.")
		return false, nil
	}

	u.logger.Warning("SignatureUpdater", "New version available. Downloading from "+u.databaseURL)

	data, err := u.fetchDatabase()
	if err != nil {
		return false, err
	}

	tmpPath := currentDBPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		os.Remove(tmpPath)
		return false, cerrors.Wrap(cerrors.FileAccess, "failed to open temporary file for writing: "+tmpPath, err)
	}

	u.logger.Info("SignatureUpdater", "Download complete. Validating new database...")

	validator := signature.New()
	if err := validator.LoadBytes(data); err != nil {
		os.Remove(tmpPath)
		u.logger.Error("SignatureUpdater", "Downloaded database failed validation: "+err.Error())
		return false, cerrors.Wrap(cerrors.DatabaseParse, "downloaded database is corrupt or invalid", err)
	}
	u.logger.Info("SignatureUpdater", "New database is valid.")

	if err := os.Rename(tmpPath, currentDBPath); err != nil {
		os.Remove(tmpPath)
		return false, cerrors.Wrap(cerrors.FileAccess, "failed to apply update", err)
	}

	u.logger.Warning("SignatureUpdater", "Successfully updated signature database to version "+remoteVersion)
	return true, nil
}

func (u *Updater) fetchRemoteVersion() (string, error) {
	resp, err := u.fetcher.Get(u.versionURL)
	if err != nil {
		return "", cerrors.Wrap(cerrors.FileAccess, "failed to download version file from "+u.versionURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", cerrors.New(cerrors.FileAccess, "failed to download version file, status code "+http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(body), " \n\r\t"), nil
}

// fetchDatabase downloads the plain signatures.json endpoint, or, if UseXZ
// is set, the xz-compressed signatures.json.xz variant, transparently
// decompressed.
func (u *Updater) fetchDatabase() ([]byte, error) {
	if u.UseXZ {
		return u.fetchXZDatabase()
	}

	resp, err := u.fetcher.Get(u.databaseURL)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.FileAccess, "failed to download database file from "+u.databaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, cerrors.New(cerrors.FileAccess, "failed to download database file, status code "+http.StatusText(resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

func (u *Updater) fetchXZDatabase() ([]byte, error) {
	resp, err := u.fetcher.Get(u.xzURL)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.FileAccess, "failed to download database file from "+u.xzURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, cerrors.New(cerrors.FileAccess, "failed to download database file, status code "+http.StatusText(resp.StatusCode))
	}

	xzReader, err := xz.NewReader(resp.Body, 0)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.FileAccess, "failed to decompress signature database", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, xzReader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
