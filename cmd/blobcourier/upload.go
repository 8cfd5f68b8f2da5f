package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blobcourier/blobcourier/internal/transfer"
)

func uploadCmd() *cobra.Command {
	var encrypt bool

	cmd := &cobra.Command{
		Use:   "upload [file] [remote-path]",
		Short: "Upload a file to remote storage",
		Long:  "Uploads a local file as a single named object, optionally encrypted end to end.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(args[0], args[1], encrypt)
		},
	}

	cmd.Flags().BoolVarP(&encrypt, "encrypt", "e", false, "Encrypt the payload")

	return cmd
}

func runUpload(localPath, remotePath string, encrypt bool) error {
	startTime := time.Now()

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	payload, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	opts, cleanup, err := transferOptions(cfg, log, encrypt)
	if err != nil {
		return err
	}
	defer cleanup()

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	defer backend.Close()

	ref := backend.Ref(remotePath)
	up := transfer.NewUpload(ref, payload, opts...)
	if err := runTransfer(up, "Uploading "+filepath.Base(localPath)); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Printf("Uploaded %s to %s (%s in %s)\n",
		filepath.Base(localPath), ref.Path(),
		formatBytes(int64(len(payload))),
		time.Since(startTime).Round(time.Millisecond))

	return nil
}
