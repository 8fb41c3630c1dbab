package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kayz/promptgate/internal/config"
	"github.com/kayz/promptgate/internal/hub"
	"github.com/kayz/promptgate/internal/janitor"
	"github.com/kayz/promptgate/internal/persist"
	"github.com/kayz/promptgate/internal/preset"
	"github.com/kayz/promptgate/internal/regexscript"
)

var (
	transformRequestPath string
	transformPresetName  string
	transformPresetPath  string
	transformOutputPath  string
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform a request file through a preset without calling a backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		if transformRequestPath == "" {
			return fmt.Errorf("--request is required")
		}
		if transformPresetName == "" && transformPresetPath == "" {
			return fmt.Errorf("--preset or --preset-file is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		reqBytes, err := os.ReadFile(transformRequestPath)
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}
		var req janitor.ChatRequest
		if err := json.Unmarshal(reqBytes, &req); err != nil {
			return fmt.Errorf("parse request: %w", err)
		}

		engine := regexscript.NewEngine(time.Duration(cfg.Limits.RegexTimeoutMS) * time.Millisecond)
		cache := preset.NewCache(0)

		var ps *preset.Preset
		var pipeline *hub.Pipeline
		if transformPresetPath != "" {
			presetBytes, err := os.ReadFile(transformPresetPath)
			if err != nil {
				return fmt.Errorf("read preset: %w", err)
			}
			ps, err = preset.Load(presetBytes)
			if err != nil {
				return fmt.Errorf("parse preset: %w", err)
			}
			pipeline = hub.NewPipeline(engine, cache, emptyStorage{})
		} else {
			store, err := persist.NewStore(cfg.Storage.SQLitePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()
			pipeline = hub.NewPipeline(engine, cache, store)
			ps, err = pipeline.LoadPreset(transformPresetName)
			if err != nil {
				return err
			}
		}

		result := pipeline.Transform(req, ps)
		out, err := json.MarshalIndent(result.Messages, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}

		if transformOutputPath == "" {
			fmt.Println(string(out))
			return nil
		}
		if err := os.WriteFile(transformOutputPath, out, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	},
}

// emptyStorage backs a file-based transform where no store is opened.
type emptyStorage struct{}

func (emptyStorage) Get(string) (string, bool, error) { return "", false, nil }
func (emptyStorage) Set(string, string) error         { return nil }

func init() {
	transformCmd.Flags().StringVar(&transformRequestPath, "request", "", "Path to JSON request file")
	transformCmd.Flags().StringVar(&transformPresetName, "preset", "", "Stored preset name")
	transformCmd.Flags().StringVar(&transformPresetPath, "preset-file", "", "Path to preset JSON file")
	transformCmd.Flags().StringVar(&transformOutputPath, "output", "", "Write output to file (default: stdout)")
	rootCmd.AddCommand(transformCmd)
}
