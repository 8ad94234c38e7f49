// Package s3 uploads one file per block to a pre-signed URL. Both the source
// path and the URL may contain the placeholders {task} and {coord}.
package s3

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/registry"
	"github.com/specialistvlad/blockgrid/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// httpClient is a shared client for all uploads to reuse TCP connections.
var httpClient = &http.Client{}

// Input holds the arguments of an upload.
type Input struct {
	SourcePath string
	UploadURL  string
}

// inputFor expands the placeholders of the block's arguments.
func inputFor(block *protocol.BlockDescriptor) (*Input, error) {
	coord := make([]string, len(block.Coord))
	for i, c := range block.Coord {
		coord[i] = strconv.FormatInt(c, 10)
	}
	r := strings.NewReplacer("{task}", block.TaskID, "{coord}", strings.Join(coord, "_"))
	in := &Input{
		SourcePath: r.Replace(block.Arguments["source_path"]),
		UploadURL:  r.Replace(block.Arguments["upload_url"]),
	}
	if in.SourcePath == "" || in.UploadURL == "" {
		return nil, fmt.Errorf("s3: arguments source_path and upload_url are required")
	}
	return in, nil
}

// ProcessBlock uploads the block's file.
func ProcessBlock(ctx context.Context, block *protocol.BlockDescriptor) error {
	input, err := inputFor(block)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx).With("action", "upload", "block", block.Key().String())

	file, err := os.Open(input.SourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file '%s': %w", input.SourcePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file stats for '%s': %w", input.SourcePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, input.UploadURL, file)
	if err != nil {
		return fmt.Errorf("failed to create S3 upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(input.SourcePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading block file to S3", "source", input.SourcePath, "size", stat.Size(), "contentType", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute S3 upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("S3 upload failed with status: %s", resp.Status)
	}
	logger.Debug("Successfully uploaded file", "status", resp.Status)
	return nil
}

// Register registers the processor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("s3_upload", task.ProcessorFunc(ProcessBlock))
}
