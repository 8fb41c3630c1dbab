package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kayz/promptgate/internal/persist"
	"github.com/kayz/promptgate/internal/preset"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Validate and store preset documents",
}

var presetValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a preset document for structural problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read preset: %w", err)
		}
		ps, err := preset.Load(data)
		if err != nil {
			return err
		}
		fmt.Printf("ok: %d blocks, %d scripts\n", len(ps.Blocks), len(ps.Scripts))
		return nil
	},
}

var presetStoreCmd = &cobra.Command{
	Use:   "store <name> <file>",
	Short: "Validate a preset document and store it under a name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return fmt.Errorf("preset name is required")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read preset: %w", err)
		}
		if _, err := preset.Load(data); err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Set(persist.PresetKey(name), string(data)); err != nil {
			return fmt.Errorf("store preset: %w", err)
		}
		fmt.Printf("stored preset %q\n", name)
		return nil
	},
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored preset names",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		keys, err := store.Keys("preset/")
		if err != nil {
			return fmt.Errorf("list presets: %w", err)
		}
		for _, key := range keys {
			fmt.Println(strings.TrimPrefix(key, "preset/"))
		}
		return nil
	},
}

var presetShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored preset document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		raw, ok, err := store.Get(persist.PresetKey(args[0]))
		if err != nil {
			return fmt.Errorf("load preset: %w", err)
		}
		if !ok {
			return fmt.Errorf("preset not found: %s", args[0])
		}
		fmt.Println(raw)
		return nil
	},
}

func init() {
	presetCmd.AddCommand(presetValidateCmd)
	presetCmd.AddCommand(presetStoreCmd)
	presetCmd.AddCommand(presetListCmd)
	presetCmd.AddCommand(presetShowCmd)
	rootCmd.AddCommand(presetCmd)
}
