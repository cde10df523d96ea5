package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/compare"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/prefs"
	"github.com/fjod/storefront/internal/storage"
	"github.com/spf13/cobra"
)

var inspectKeys = []string{
	cart.StorageKey,
	compare.StorageKey,
	prefs.ThemeKey,
	auth.LockoutKey,
	auth.PendingOTPKey,
	auth.SessionKey,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the stored state of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, closeStorage, err := openStorage(ctx, cfg, logging.Nop())
	if err != nil {
		return err
	}
	defer closeStorage()

	out, err := dumpSession(ctx, st, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func dumpSession(ctx context.Context, st storage.Storage, sessionID string) ([]byte, error) {
	scoped := storage.NewScoped(st, sessionID)
	state := make(map[string]json.RawMessage, len(inspectKeys))
	for _, key := range inspectKeys {
		raw, err := scoped.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if !json.Valid([]byte(raw)) {
			// keep corrupt values visible as strings
			quoted, _ := json.Marshal(raw)
			raw = string(quoted)
		}
		state[key] = json.RawMessage(raw)
	}
	return json.MarshalIndent(map[string]interface{}{
		"session_id": sessionID,
		"state":      state,
	}, "", "  ")
}
