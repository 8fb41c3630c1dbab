package hub

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kayz/promptgate/internal/config"
	"github.com/kayz/promptgate/internal/janitor"
	"github.com/kayz/promptgate/internal/prompt"
)

// Auditor appends one JSONL record per transformed request to a daily
// file and prunes files past the retention window. Disabled auditors are
// valid and do nothing.
type Auditor struct {
	cfg config.AuditConfig
	mu  sync.Mutex
}

func NewAuditor(cfg config.AuditConfig) *Auditor {
	return &Auditor{cfg: cfg}
}

type auditRecord struct {
	Timestamp      string `json:"timestamp"`
	Preset         string `json:"preset"`
	RequestDigest  string `json:"request_digest"`
	GenerationKind string `json:"generation_kind"`
	HistoryCount   int    `json:"history_count"`
	MessageCount   int    `json:"message_count"`
	Model          string `json:"model,omitempty"`
}

// Record logs one transform. Failures here must not block delivery, so
// callers are expected to warn and continue on error.
func (a *Auditor) Record(presetName string, parsed janitor.ParsedRequest, messages []prompt.Message) error {
	if !a.cfg.Enabled {
		return nil
	}

	if err := os.MkdirAll(a.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	now := time.Now()
	filePath := filepath.Join(a.cfg.Dir, fmt.Sprintf("%s-%s.jsonl", a.prefix(), now.Format("2006-01-02")))

	record := auditRecord{
		Timestamp:      now.Format(time.RFC3339),
		Preset:         presetName,
		RequestDigest:  requestDigest(parsed),
		GenerationKind: string(parsed.Kind),
		HistoryCount:   len(parsed.History),
		MessageCount:   len(messages),
		Model:          parsed.Model,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := appendJSONL(filePath, line); err != nil {
		return err
	}
	return a.cleanupWithNow(now)
}

func (a *Auditor) prefix() string {
	prefix := strings.TrimSpace(a.cfg.FilePrefix)
	if prefix == "" {
		prefix = "transform"
	}
	return prefix
}

func appendJSONL(filePath string, line []byte) error {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

// Cleanup removes audit files older than the retention window.
func (a *Auditor) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cleanupWithNow(time.Now())
}

func (a *Auditor) cleanupWithNow(now time.Time) error {
	if !a.cfg.Enabled || a.cfg.RetentionDays <= 0 {
		return nil
	}

	entries, err := os.ReadDir(a.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list audit dir: %w", err)
	}

	prefix := a.prefix()
	cutoff := now.AddDate(0, 0, -a.cfg.RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		filePath := filepath.Join(a.cfg.Dir, name)
		fileDate, ok := parseAuditDate(name, prefix)
		if ok {
			if fileDate.Before(startOfDay(cutoff)) {
				if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove old audit file %s: %w", filePath, err)
				}
			}
			continue
		}

		// Non-dated files matching the prefix fall back to modtime.
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat audit file %s: %w", filePath, err)
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove old audit file %s: %w", filePath, err)
			}
		}
	}

	return nil
}

func parseAuditDate(filename, prefix string) (time.Time, bool) {
	raw := strings.TrimSuffix(filename, ".jsonl")
	raw = strings.TrimPrefix(raw, prefix+"-")
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// requestDigest fingerprints the request shape without persisting any
// message content.
func requestDigest(parsed janitor.ParsedRequest) string {
	digestInput := struct {
		CharName     string `json:"char_name,omitempty"`
		UserName     string `json:"user_name,omitempty"`
		Kind         string `json:"kind"`
		HistoryCount int    `json:"history_count"`
		PersonaLen   int    `json:"persona_len"`
		ScenarioLen  int    `json:"scenario_len"`
		WorldInfoLen int    `json:"world_info_len"`
		ExamplesLen  int    `json:"examples_len"`
	}{
		CharName:     parsed.CharacterName,
		UserName:     parsed.UserName,
		Kind:         string(parsed.Kind),
		HistoryCount: len(parsed.History),
		PersonaLen:   len(parsed.Persona),
		ScenarioLen:  len(parsed.Scenario),
		WorldInfoLen: len(parsed.WorldInfo),
		ExamplesLen:  len(parsed.ExampleDialogue),
	}
	payload, _ := json.Marshal(digestInput)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
