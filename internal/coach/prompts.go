package coach

import "fmt"

func illustrationPrompt(topic string) string {
	return fmt.Sprintf(
		"Create a bright, friendly, cartoon-style illustration about %q for a young child's presentation. "+
			"No text or letters in the image. Cheerful colors, simple shapes, nothing scary.",
		topic)
}

func scriptPrompt(topic string, level Level) string {
	return fmt.Sprintf(
		"Write a short English presentation script about %q for a child at %s level. "+
			"Return an intro sentence, 3 to 5 simple talking points, a one-sentence conclusion, "+
			"and 4 to 6 vocabulary words. For each vocabulary word give its phonetic transcription, "+
			"a translation, and a single emoji glyph. Keep sentences short and easy to read aloud. "+
			"If an illustration is attached, describe what it shows.",
		topic, level)
}

func evaluationPrompt(scriptText string, level Level) string {
	return fmt.Sprintf(
		"A child at %s level was asked to read this presentation script aloud:\n\n%s\n\n"+
			"Listen to the attached recording and score it from 0 to 10 on each criterion: "+
			"pronunciation, fluency, intonation, vocabulary, grammar, and task fulfillment. "+
			"Be encouraging but honest; use one decimal of precision.",
		level, scriptText)
}

// Structured-output schemas, in the provider's schema dialect.

func scriptSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"intro": map[string]any{"type": "STRING"},
			"points": map[string]any{
				"type":  "ARRAY",
				"items": map[string]any{"type": "STRING"},
			},
			"conclusion": map[string]any{"type": "STRING"},
			"vocabulary": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"word":        map[string]any{"type": "STRING"},
						"phonetic":    map[string]any{"type": "STRING"},
						"translation": map[string]any{"type": "STRING"},
						"glyph":       map[string]any{"type": "STRING"},
					},
					"required": []string{"word", "phonetic", "translation", "glyph"},
				},
			},
		},
		"required": []string{"intro", "points", "conclusion", "vocabulary"},
	}
}

func rubricSchema() map[string]any {
	scores := map[string]any{}
	for _, name := range []string{
		"pronunciation", "fluency", "intonation", "vocabulary", "grammar", "task_fulfillment",
	} {
		scores[name] = map[string]any{"type": "NUMBER"}
	}
	return map[string]any{
		"type":       "OBJECT",
		"properties": scores,
		"required": []string{
			"pronunciation", "fluency", "intonation", "vocabulary", "grammar", "task_fulfillment",
		},
	}
}
