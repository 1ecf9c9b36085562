package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Artifact content is a tagged payload: one concrete schema per artifact
// type. Content that does not match its declared type's schema is rejected
// before it ever reaches the ledger.

type SummaryContent struct {
	Summary   string `json:"summary"`
	WordCount int    `json:"word_count"`
}

type KeyPointsContent struct {
	KeyPoints []string `json:"keypoints"`
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

type QuizContent struct {
	Questions []QuizQuestion `json:"questions"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type FlashcardsContent struct {
	Flashcards []Flashcard `json:"flashcards"`
}

// ErrInvalidContent marks every content schema violation so callers can
// distinguish bad payloads from infrastructure failures.
var ErrInvalidContent = errors.New("invalid artifact content")

// ValidateContent decodes raw against the schema for artifactType and
// reports the first shape violation. Unknown fields are rejected so a
// payload tagged as one type cannot smuggle another type's shape through.
func ValidateContent(artifactType ArtifactType, raw []byte) error {
	if err := validateContent(artifactType, raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidContent, err)
	}
	return nil
}

func validateContent(artifactType ArtifactType, raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty content for artifact type %q", artifactType)
	}
	switch artifactType {
	case ArtifactSummary:
		var c SummaryContent
		if err := strictUnmarshal(raw, &c); err != nil {
			return fmt.Errorf("summary content: %w", err)
		}
		if strings.TrimSpace(c.Summary) == "" {
			return fmt.Errorf("summary content: empty summary text")
		}
	case ArtifactKeyPoints:
		var c KeyPointsContent
		if err := strictUnmarshal(raw, &c); err != nil {
			return fmt.Errorf("keypoints content: %w", err)
		}
		if len(c.KeyPoints) == 0 {
			return fmt.Errorf("keypoints content: no key points")
		}
		for i, kp := range c.KeyPoints {
			if strings.TrimSpace(kp) == "" {
				return fmt.Errorf("keypoints content: key point %d is blank", i)
			}
		}
	case ArtifactQuiz:
		var c QuizContent
		if err := strictUnmarshal(raw, &c); err != nil {
			return fmt.Errorf("quiz content: %w", err)
		}
		if len(c.Questions) == 0 {
			return fmt.Errorf("quiz content: no questions")
		}
		for i, q := range c.Questions {
			if strings.TrimSpace(q.Question) == "" {
				return fmt.Errorf("quiz content: question %d has no prompt", i)
			}
			if len(q.Options) < 2 {
				return fmt.Errorf("quiz content: question %d needs at least 2 options", i)
			}
			if !containsString(q.Options, q.CorrectAnswer) {
				return fmt.Errorf("quiz content: question %d correct answer not among options", i)
			}
		}
	case ArtifactFlashcards:
		var c FlashcardsContent
		if err := strictUnmarshal(raw, &c); err != nil {
			return fmt.Errorf("flashcards content: %w", err)
		}
		if len(c.Flashcards) == 0 {
			return fmt.Errorf("flashcards content: no cards")
		}
		for i, fc := range c.Flashcards {
			if strings.TrimSpace(fc.Front) == "" || strings.TrimSpace(fc.Back) == "" {
				return fmt.Errorf("flashcards content: card %d has a blank side", i)
			}
		}
	default:
		return fmt.Errorf("unknown artifact type %q", artifactType)
	}
	return nil
}

// ContentHash returns the deterministic hash of normalized content: the
// payload is decoded into its typed schema and re-marshaled so key order
// and insignificant whitespace never change the hash.
func ContentHash(artifactType ArtifactType, raw []byte) (string, error) {
	normalized, err := normalizeContent(artifactType, raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalText renders content as plain text for embedding. The rendering
// is stable per type so embeddings of equal content are comparable.
func CanonicalText(artifactType ArtifactType, raw []byte) (string, error) {
	switch artifactType {
	case ArtifactSummary:
		var c SummaryContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return "", err
		}
		return strings.TrimSpace(c.Summary), nil
	case ArtifactKeyPoints:
		var c KeyPointsContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return "", err
		}
		return strings.TrimSpace(strings.Join(c.KeyPoints, "\n")), nil
	case ArtifactQuiz:
		var c QuizContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return "", err
		}
		lines := make([]string, 0, len(c.Questions))
		for _, q := range c.Questions {
			lines = append(lines, q.Question+" "+q.CorrectAnswer)
		}
		return strings.TrimSpace(strings.Join(lines, "\n")), nil
	case ArtifactFlashcards:
		var c FlashcardsContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return "", err
		}
		lines := make([]string, 0, len(c.Flashcards))
		for _, fc := range c.Flashcards {
			lines = append(lines, fc.Front+" "+fc.Back)
		}
		return strings.TrimSpace(strings.Join(lines, "\n")), nil
	default:
		return "", fmt.Errorf("unknown artifact type %q", artifactType)
	}
}

func normalizeContent(artifactType ArtifactType, raw []byte) ([]byte, error) {
	var typed any
	switch artifactType {
	case ArtifactSummary:
		typed = &SummaryContent{}
	case ArtifactKeyPoints:
		typed = &KeyPointsContent{}
	case ArtifactQuiz:
		typed = &QuizContent{}
	case ArtifactFlashcards:
		typed = &FlashcardsContent{}
	default:
		return nil, fmt.Errorf("unknown artifact type %q", artifactType)
	}
	if err := json.Unmarshal(raw, typed); err != nil {
		return nil, err
	}
	return json.Marshal(typed)
}

func strictUnmarshal(raw []byte, out any) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
