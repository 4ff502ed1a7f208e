package coach

import "fmt"

// Level is the learner's difficulty setting, forwarded verbatim into prompts.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// VocabularyEntry is one highlighted word from a generated script.
type VocabularyEntry struct {
	Word        string `json:"word"`
	Phonetic    string `json:"phonetic"`
	Translation string `json:"translation"`
	Glyph       string `json:"glyph"`
}

// PresentationScript is the generated read-aloud script. Immutable once
// produced; Level and FullText are contextual wrapping added here rather
// than trusted from the model.
type PresentationScript struct {
	Intro      string            `json:"intro"`
	Points     []string          `json:"points"`
	Conclusion string            `json:"conclusion"`
	Vocabulary []VocabularyEntry `json:"vocabulary"`

	Level    Level  `json:"level,omitempty"`
	FullText string `json:"full_text,omitempty"`
}

// MalformedResponseError reports a response whose structured payload could
// not be parsed and for which no safe default exists.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned an unusable response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
