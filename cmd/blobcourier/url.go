package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func urlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url [remote-path]",
		Short: "Print a shareable download link for a remote object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runURL(args[0])
		},
	}
}

func runURL(remotePath string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	defer backend.Close()

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	backend.Ref(remotePath).DownloadURL(func(url string, err error) {
		done <- result{url: url, err: err}
	})

	res := <-done
	if res.err != nil {
		return fmt.Errorf("failed to resolve download URL: %w", res.err)
	}

	fmt.Println(res.url)
	return nil
}
