package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-getter"
)

// DefaultURL is the upstream GOV.UK Frontend archive.
const DefaultURL = "https://github.com/alphagov/govuk-frontend/archive/main.zip"

// Fetcher retrieves the raw bytes of an archive. Implementations block until
// the download completes and do not retry.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// GetterFetcher downloads archives with go-getter in file mode.
// go-getter's automatic unarchiving is disabled; extraction is done
// separately by Extract.
type GetterFetcher struct {
	// TempDir is the parent directory for the transient download file.
	// Empty means os.TempDir().
	TempDir string
}

// NewGetterFetcher creates a GetterFetcher that downloads into the system
// temporary directory.
func NewGetterFetcher() *GetterFetcher {
	return &GetterFetcher{}
}

// Fetch downloads src and returns its contents. src may be any source
// go-getter understands in file mode (http, https, file paths).
func (f *GetterFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	getterSrc, err := disableUnarchive(src)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(f.TempDir, "govuk-jekyll-download-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	pwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("while getting current dir: %w", err)
	}

	dst := filepath.Join(dir, "archive.zip")
	client := &getter.Client{
		Ctx:  ctx,
		Src:  getterSrc,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", src, err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to read downloaded archive: %w", err)
	}
	return data, nil
}

// disableUnarchive adds go-getter's archive=false parameter so a ".zip"
// source is saved as-is instead of being unpacked.
func disableUnarchive(src string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("archive source must not be empty")
	}

	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths (including Windows drive letters) go through
		// go-getter's detectors untouched, with the flag appended.
		return src + "?archive=false", nil
	}

	q := u.Query()
	q.Set("archive", "false")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
