package tui

import (
	"fmt"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/token"
)

// setting is one row of the settings popup.
type setting int

const (
	settingHidden setting = iota
	settingFollowSymlinks
	settingLineNumbers
	settingNoCodeblock
	settingTokenizer
)

var allSettings = []setting{settingHidden, settingFollowSymlinks, settingLineNumbers, settingNoCodeblock, settingTokenizer}

func (s setting) label() string {
	switch s {
	case settingHidden:
		return "Hidden files"
	case settingFollowSymlinks:
		return "Follow symlinks"
	case settingLineNumbers:
		return "Line numbers"
	case settingNoCodeblock:
		return "No code blocks"
	case settingTokenizer:
		return "Tokenizer"
	}
	return "?"
}

func (s setting) value(o config.Options) string {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	switch s {
	case settingHidden:
		return onOff(o.Hidden)
	case settingFollowSymlinks:
		return onOff(o.FollowSymlinks)
	case settingLineNumbers:
		return onOff(o.LineNumbers)
	case settingNoCodeblock:
		return onOff(o.NoCodeblock)
	case settingTokenizer:
		return o.Tokenizer
	}
	return ""
}

// cycle moves the setting one step; booleans flip either way.
func (s setting) cycle(o *config.Options, step int) {
	switch s {
	case settingHidden:
		o.Hidden = !o.Hidden
	case settingFollowSymlinks:
		o.FollowSymlinks = !o.FollowSymlinks
	case settingLineNumbers:
		o.LineNumbers = !o.LineNumbers
	case settingNoCodeblock:
		o.NoCodeblock = !o.NoCodeblock
	case settingTokenizer:
		o.Tokenizer = token.Next(o.Tokenizer, step)
	}
}

func (s setting) row(o config.Options) string {
	return fmt.Sprintf("%-16s %s", s.label(), s.value(o))
}
