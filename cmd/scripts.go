package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kayz/promptgate/internal/config"
	"github.com/kayz/promptgate/internal/persist"
	"github.com/kayz/promptgate/internal/regexscript"
)

var scriptsOutputPath string

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Manage the global regex script collection",
}

var scriptsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate and store a script collection document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read scripts: %w", err)
		}
		scripts, err := regexscript.Import(data)
		if err != nil {
			return fmt.Errorf("parse scripts: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Set(persist.ScriptsKey, string(data)); err != nil {
			return fmt.Errorf("store scripts: %w", err)
		}
		fmt.Printf("imported %d scripts\n", len(scripts))
		return nil
	},
}

var scriptsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored script collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		raw, ok, err := store.Get(persist.ScriptsKey)
		if err != nil {
			return fmt.Errorf("load scripts: %w", err)
		}
		if !ok {
			return fmt.Errorf("no script collection stored")
		}

		// Round-trip through the codec so the export is normalized.
		scripts, err := regexscript.Import([]byte(raw))
		if err != nil {
			return fmt.Errorf("parse stored scripts: %w", err)
		}
		out, err := regexscript.Export(scripts)
		if err != nil {
			return err
		}

		if scriptsOutputPath == "" {
			fmt.Println(string(out))
			return nil
		}
		if err := os.WriteFile(scriptsOutputPath, out, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	},
}

func openStore() (*persist.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := persist.NewStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func init() {
	scriptsExportCmd.Flags().StringVar(&scriptsOutputPath, "output", "", "Write output to file (default: stdout)")
	scriptsCmd.AddCommand(scriptsImportCmd)
	scriptsCmd.AddCommand(scriptsExportCmd)
	rootCmd.AddCommand(scriptsCmd)
}
