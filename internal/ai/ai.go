// Package ai holds the external language-model collaborators: free-text
// content generation for strategies and intent classification for voice
// input that no keyword table entry matched.
package ai

import "context"

// ContentGenerator turns a prompt into free-form text. Callers are
// responsible for lenient parsing of whatever comes back.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt, difficulty string, count int) (string, error)
}

// Intent is the classifier's resolution of a free-form utterance.
type Intent struct {
	Type    string
	Payload map[string]string
}

// IntentClassifier resolves free-form text into a canonical action,
// used only after the keyword table came up empty.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, contextHints map[string]string) (Intent, error)
}
