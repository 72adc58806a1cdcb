package tui

import "github.com/atotto/clipboard"

type Option func(*Model)

// WithAllScope starts the dashboard on every open task. Only admins may use it.
func WithAllScope(all bool) Option {
	return func(m *Model) {
		m.allScope = all
	}
}

// WithMarkdownStyle selects the glamour style used for notes ("dark", "light", "notty").
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		m.markdown.style = style
	}
}

// WithClipboard overrides the clipboard writer used by the copy binding.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func defaultClipboard(text string) error {
	return clipboard.WriteAll(text)
}
