package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blobcourier/blobcourier/internal/transfer"
)

func downloadCmd() *cobra.Command {
	var decrypt bool

	cmd := &cobra.Command{
		Use:   "download [remote-path] [file]",
		Short: "Download an object to a local file",
		Long:  "Downloads a remote object into the given local path, decrypting it if a key was used on upload.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(args[0], args[1], decrypt)
		},
	}

	cmd.Flags().BoolVarP(&decrypt, "decrypt", "d", false, "Decrypt the payload")

	return cmd
}

func runDownload(remotePath, localPath string, decrypt bool) error {
	startTime := time.Now()

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	localPath, err = filepath.Abs(localPath)
	if err != nil {
		return fmt.Errorf("invalid destination path: %w", err)
	}

	opts, cleanup, err := transferOptions(cfg, log, decrypt)
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
	down := transfer.NewDownload(ref, localPath, opts...)
	if err := runTransfer(down, "Downloading "+ref.Name()); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	fmt.Printf("Downloaded %s to %s (%s)\n",
		ref.Path(), localPath,
		time.Since(startTime).Round(time.Millisecond))

	return nil
}
