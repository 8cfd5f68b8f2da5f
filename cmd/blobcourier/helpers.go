package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/blobcourier/blobcourier/internal/compress"
	"github.com/blobcourier/blobcourier/internal/config"
	"github.com/blobcourier/blobcourier/internal/crypto"
	"github.com/blobcourier/blobcourier/internal/logging"
	"github.com/blobcourier/blobcourier/internal/storage"
	"github.com/blobcourier/blobcourier/internal/transfer"
)

// setup loads the configuration and builds the logger.
func setup() (*config.Config, zerolog.Logger, error) {
	path := configPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("failed to locate config directory: %w", err)
		}
		path = filepath.Join(dir, "blobcourier", "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config %s: %w", path, err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return cfg, logging.New(level), nil
}

// newBackend constructs the configured storage backend.
func newBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Provider {
	case "local":
		return storage.NewLocalBackend(cfg.Storage.BasePath)
	default:
		return storage.NewS3Backend(storage.S3Config{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Prefix:    cfg.Storage.Prefix,
		})
	}
}

// transferOptions assembles the codec options shared by upload and download.
func transferOptions(cfg *config.Config, log zerolog.Logger, encrypt bool) ([]transfer.Option, func(), error) {
	opts := []transfer.Option{transfer.WithLogger(log)}
	cleanup := func() {}

	if cfg.Compression.Enabled {
		comp, err := compress.New(compress.Algorithm(cfg.Compression.Algorithm), cfg.Compression.Level)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create compressor: %w", err)
		}
		opts = append(opts, transfer.WithCompression(comp))
		cleanup = comp.Close
	}

	if encrypt || cfg.Encryption.Enabled {
		key, err := encryptionKey(cfg)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		opts = append(opts, transfer.WithKey(key))
	}

	return opts, cleanup, nil
}

// encryptionKey prompts for the passphrase and derives the symmetric key,
// creating and persisting the derivation salt on first use.
func encryptionKey(cfg *config.Config) ([]byte, error) {
	passphrase, err := promptPassword("Enter passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	saltPath := cfg.Encryption.SaltFile
	if saltPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		saltPath = filepath.Join(dir, "blobcourier", "salt")
	}

	var salt []byte
	if data, err := os.ReadFile(saltPath); err == nil {
		salt, err = hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("corrupt salt file %s: %w", saltPath, err)
		}
	} else {
		salt, err = crypto.GenerateSalt()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(saltPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create salt directory: %w", err)
		}
		if err := os.WriteFile(saltPath, []byte(hex.EncodeToString(salt)), 0o600); err != nil {
			return nil, fmt.Errorf("failed to persist salt: %w", err)
		}
	}

	return crypto.DeriveKey(passphrase, salt), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	var password string
	if _, err := fmt.Fscanln(os.Stdin, &password); err != nil {
		return "", err
	}
	return password, nil
}

// cliObserver renders a progress bar and signals the terminal outcome.
type cliObserver struct {
	description string
	bar         *progressbar.ProgressBar
	done        chan error
}

func newCLIObserver(description string) *cliObserver {
	return &cliObserver{description: description, done: make(chan error, 1)}
}

func (o *cliObserver) Progress(p transfer.Progress) {
	if o.bar == nil {
		total := p.Total
		if !p.TotalKnown {
			total = -1
		}
		o.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetDescription(o.description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(100),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
		)
	}
	_ = o.bar.Set64(p.Completed)
}

func (o *cliObserver) Done(err error) {
	if o.bar != nil {
		_ = o.bar.Finish()
	}
	o.done <- err
}

// runTransfer starts the transfer, wires Ctrl-C to cancellation, and blocks
// until the terminal outcome.
func runTransfer(t transfer.Transfer, description string) error {
	obs := newCLIObserver(description)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sig; ok {
			t.Cancel()
		}
	}()

	t.Start(obs)
	err := <-obs.done
	signal.Stop(sig)
	close(sig)
	return err
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
