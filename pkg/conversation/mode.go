package conversation

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Mode is one conversational persona. Read-only at orchestration time.
type Mode struct {
	Name            string `yaml:"name"`
	SystemPrompt    string `yaml:"system"`
	InitialScenario string `yaml:"initial_scenario"`
	// SummaryPrompt, when set, marks the mode as summary-capable.
	SummaryPrompt string `yaml:"summary_prompt,omitempty"`
}

// ModeTable is an immutable, ordered set of modes. Replace the whole
// table to reload configuration; never mutate one in place.
type ModeTable struct {
	order  []string
	byName map[string]Mode
}

func NewModeTable(modes []Mode) (*ModeTable, error) {
	if len(modes) == 0 {
		return nil, fmt.Errorf("mode table is empty")
	}
	t := &ModeTable{byName: make(map[string]Mode, len(modes))}
	for _, m := range modes {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("mode with empty name")
		}
		if _, dup := t.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate mode %q", m.Name)
		}
		t.order = append(t.order, m.Name)
		t.byName[m.Name] = m
	}
	return t, nil
}

func (t *ModeTable) Get(name string) (Mode, bool) {
	m, ok := t.byName[name]
	return m, ok
}

// Names returns mode names in declaration order.
func (t *ModeTable) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

type modeFile struct {
	Modes []Mode `yaml:"modes"`
}

// LoadModeFile parses a YAML mode table. Declaration order is preserved
// and becomes the command phrase priority order.
func LoadModeFile(path string) (*ModeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseModeTable(raw)
}

func ParseModeTable(raw []byte) (*ModeTable, error) {
	var f modeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse mode table: %w", err)
	}
	return NewModeTable(f.Modes)
}

// ModeRegistry holds the process-wide mode table. Reload swaps the whole
// table atomically so no session observes a half-updated set.
type ModeRegistry struct {
	table atomic.Pointer[ModeTable]
}

func NewModeRegistry(initial *ModeTable) *ModeRegistry {
	r := &ModeRegistry{}
	r.table.Store(initial)
	return r
}

func (r *ModeRegistry) Current() *ModeTable {
	return r.table.Load()
}

func (r *ModeRegistry) Replace(t *ModeTable) {
	r.table.Store(t)
}

var summaryMarkers = []string{"サマリー", "サマリ"}

// RequestsSummary reports whether the utterance asks for a summary.
func RequestsSummary(text string) bool {
	for _, marker := range summaryMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// DefaultModes is the built-in mode table used when no config file is
// provided.
func DefaultModes() *ModeTable {
	t, _ := NewModeTable([]Mode{
		{
			Name:            "雑談",
			SystemPrompt:    "あなたは親しみやすい雑談相手です。短く自然な日本語で返答してください。",
			InitialScenario: "雑談モードを開始します。今日はどんな話をしましょうか？",
		},
		{
			Name:            "アラート",
			SystemPrompt:    "あなたは通知・注意喚起を扱うアシスタントです。重要な情報を簡潔に伝えてください。",
			InitialScenario: "アラートモードを開始します。確認したい通知はありますか？",
		},
		{
			Name:            "タイマー",
			SystemPrompt:    "あなたはタイマーとスケジュールを扱うアシスタントです。時間に関する依頼に簡潔に応えてください。",
			InitialScenario: "タイマーモードを開始します。どのような計測をしますか？",
		},
		{
			Name:            "レポート",
			SystemPrompt:    "あなたは業務レポートの聞き取りと整理を行うアシスタントです。内容を確認しながら丁寧に応答してください。",
			InitialScenario: "レポートモードを開始します。報告内容をどうぞ。",
			SummaryPrompt:   "ここまでの報告内容を箇条書きで簡潔にまとめてください。",
		},
	})
	return t
}
