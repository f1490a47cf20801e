package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shortcut-panel/config"
	"shortcut-panel/storage"
	"shortcut-panel/view"
)

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := resetTabState(cfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "tab state cleared")
	return nil
}

// resetTabState removes the saved tab selection and last prompt from every
// configured store.
func resetTabState(cfg *config.Config) error {
	local, err := storage.NewLocal(cfg.Storage.StateFile)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	if err := local.RemoveItem(view.TabStateKey); err != nil {
		return fmt.Errorf("clear state file: %w", err)
	}

	if cfg.Storage.SettingsDB == "" {
		return nil
	}
	settings, err := storage.OpenSettings(cfg.Storage.SettingsDB)
	if err != nil {
		return fmt.Errorf("open settings db: %w", err)
	}
	defer func() {
		if err := settings.Close(); err != nil {
			logger.Warn("close settings db", zap.Error(err))
		}
	}()
	if err := settings.Delete(view.TabStateKey); err != nil {
		return fmt.Errorf("clear settings db: %w", err)
	}
	logger.Debug("tab state cleared", zap.String("state_file", cfg.Storage.StateFile), zap.String("settings_db", cfg.Storage.SettingsDB))
	return nil
}
