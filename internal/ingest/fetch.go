package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// HTTPFetcher downloads producer files over HTTP — the chat platform
// hands out short-lived download URLs for attachments. The write goes
// to the staged destination path computed by the normalizer.
func HTTPFetcher(client *http.Client) FileFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, src, dst string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return fmt.Errorf("build download request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("download %s: %w", src, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("download %s: status %d", src, resp.StatusCode)
		}

		f, err := os.Create(dst)
		if err != nil {
			return fmt.Errorf("create %s: %w", dst, err)
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			f.Close()
			os.Remove(dst)
			return fmt.Errorf("write %s: %w", dst, err)
		}
		return f.Close()
	}
}
