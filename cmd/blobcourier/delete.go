package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blobcourier/blobcourier/internal/transfer"
)

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [remote-path]",
		Short: "Delete a remote object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(args[0])
		},
	}
}

func runDelete(remotePath string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	defer backend.Close()

	ref := backend.Ref(remotePath)
	del := transfer.NewDeletion(ref, transfer.WithLogger(log))

	obs := newCLIObserver("Deleting " + ref.Name())
	del.Start(obs)
	if err := <-obs.done; err != nil {
		return fmt.Errorf("deletion failed: %w", err)
	}

	fmt.Printf("Deleted %s\n", ref.Path())
	return nil
}
