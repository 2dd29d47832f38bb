package ollama

import (
	"context"
	"log"
	"strings"
)

// Refiner uses an LLM to expand short user prompts into MusicGen-friendly
// descriptions.
type Refiner struct {
	client *Client
}

// NewRefiner creates a prompt refiner backed by an Ollama client.
func NewRefiner(client *Client) *Refiner {
	return &Refiner{client: client}
}

// refineSystemPrompt instructs the LLM to rewrite prompts for MusicGen.
const refineSystemPrompt = `You rewrite short music requests into prompts for MusicGen, a text-to-music model.

Given the user's request, output ONE description of 10-30 words.

Rules:
- Keep every concrete detail the user gave (genre, instruments, mood, tempo).
- Add instrumentation, tempo (BPM or tempo words) and production texture when missing.
- Describe the SOUND, not a story.
- Never mention vocals or lyrics unless the user asked for them.

Output ONLY the description. No quotes, no preamble, no formatting.

/no_think`

// Refine rewrites prompt. Returns empty string on failure (caller should send
// the prompt unchanged).
func (r *Refiner) Refine(ctx context.Context, prompt string) string {
	out, err := r.client.Generate(ctx, refineSystemPrompt, "Request: "+prompt)
	if err != nil {
		log.Printf("Ollama prompt refinement failed: %v", err)
		return ""
	}

	out = cleanOutput(out)
	if len(out) < len(prompt) || len(out) > 400 {
		log.Printf("Ollama returned unusable prompt: %q", out)
		return ""
	}
	return out
}

// cleanOutput strips common LLM artifacts from output.
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)

	// Thinking-mode leakage: keep only what follows the closing tag
	if idx := strings.Index(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	lower := strings.ToLower(s)
	for _, p := range []string{"description:", "prompt:", "here's the description:", "here is the description:"} {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	return strings.TrimSpace(s)
}
