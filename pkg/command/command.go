// Package command extracts control directives from recognized speech.
package command

import "strings"

// Kind tags the command variant.
type Kind int

const (
	// KindNone means the text carried no control phrase.
	KindNone Kind = iota
	KindSwitchMode
	KindEndChat
	KindGoHome
)

// Command is the result of interpreting one utterance.
type Command struct {
	Kind Kind
	// Mode is set only for KindSwitchMode.
	Mode string
}

// None is the zero command.
var None = Command{Kind: KindNone}

type rule struct {
	phrase string
	cmd    Command
}

// Interpreter matches control phrases by substring containment. Rules
// are checked in table order, first match wins, so ambiguous input maps
// to a command deterministically.
type Interpreter struct {
	rules []rule
}

// NewInterpreter builds the interpreter for a set of mode names. Mode
// switch phrases are derived as "<mode>モード" in the order given, followed
// by the fixed end-chat and go-home phrases.
func NewInterpreter(modes []string) *Interpreter {
	rules := make([]rule, 0, len(modes)+4)
	for _, m := range modes {
		rules = append(rules, rule{
			phrase: m + "モード",
			cmd:    Command{Kind: KindSwitchMode, Mode: m},
		})
	}
	rules = append(rules,
		rule{phrase: "会話終了", cmd: Command{Kind: KindEndChat}},
		rule{phrase: "チャットを終了して", cmd: Command{Kind: KindEndChat}},
		rule{phrase: "選択画面に戻って", cmd: Command{Kind: KindGoHome}},
		rule{phrase: "モード選択に戻って", cmd: Command{Kind: KindGoHome}},
	)
	return &Interpreter{rules: rules}
}

// Interpret scans text for a control phrase. Text with no known phrase
// returns None and is treated as ordinary conversational content.
func (i *Interpreter) Interpret(text string) Command {
	for _, r := range i.rules {
		if strings.Contains(text, r.phrase) {
			return r.cmd
		}
	}
	return None
}
