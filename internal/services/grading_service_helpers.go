package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edupulse/attempt-service/internal/models"
)

// fuzzyThreshold is the minimum normalized Levenshtein similarity for a
// short answer to count as a match when fuzzy matching is enabled.
const fuzzyThreshold = 0.8

func isNullAnswer(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// CheckAnswer decides correctness for one auto-gradable question. The
// answer's JSON shape is tagged by the question type: a string for multiple
// choice, short answer and fill-in-blank, a boolean for true/false. Essays
// are not auto-gradable.
func CheckAnswer(question *models.Question, raw json.RawMessage) (bool, error) {
	switch question.Type {
	case models.MultipleChoice:
		return checkMultipleChoice(question, raw)
	case models.TrueFalse:
		return checkTrueFalse(question, raw)
	case models.ShortAnswer:
		return checkShortAnswer(question, raw)
	case models.FillInBlank:
		return checkFillInBlank(question, raw)
	case models.Essay:
		return false, ErrGradingNotAllowed
	default:
		return false, fmt.Errorf("unknown question type %q", question.Type)
	}
}

func checkMultipleChoice(question *models.Question, raw json.RawMessage) (bool, error) {
	var selected string
	if err := json.Unmarshal(raw, &selected); err != nil {
		return false, fmt.Errorf("multiple choice answer must be a string: %w", err)
	}

	var key models.MultipleChoiceKey
	if err := json.Unmarshal(question.Answer, &key); err != nil {
		return false, fmt.Errorf("malformed answer key: %w", err)
	}

	return strings.EqualFold(strings.TrimSpace(selected), key.CorrectOption), nil
}

func checkTrueFalse(question *models.Question, raw json.RawMessage) (bool, error) {
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, fmt.Errorf("true/false answer must be a boolean: %w", err)
	}

	var key models.TrueFalseKey
	if err := json.Unmarshal(question.Answer, &key); err != nil {
		return false, fmt.Errorf("malformed answer key: %w", err)
	}

	return value == key.CorrectAnswer, nil
}

func checkShortAnswer(question *models.Question, raw json.RawMessage) (bool, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, fmt.Errorf("short answer must be a string: %w", err)
	}

	var key models.ShortAnswerKey
	if err := json.Unmarshal(question.Answer, &key); err != nil {
		return false, fmt.Errorf("malformed answer key: %w", err)
	}

	for _, accepted := range key.AcceptedAnswers {
		if compareStrings(value, accepted, key.CaseSensitive) {
			return true, nil
		}
	}

	if key.FuzzyMatching {
		for _, accepted := range key.AcceptedAnswers {
			if stringSimilarity(normalizeForCompare(value, key.CaseSensitive), normalizeForCompare(accepted, key.CaseSensitive)) >= fuzzyThreshold {
				return true, nil
			}
		}
	}

	return false, nil
}

func checkFillInBlank(question *models.Question, raw json.RawMessage) (bool, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, fmt.Errorf("fill-in-blank answer must be a string: %w", err)
	}

	var key models.FillInBlankKey
	if err := json.Unmarshal(question.Answer, &key); err != nil {
		return false, fmt.Errorf("malformed answer key: %w", err)
	}

	for _, accepted := range key.AcceptedAnswers {
		if compareStrings(value, accepted, key.CaseSensitive) {
			return true, nil
		}
	}

	return false, nil
}

// DisplayAnswer renders a stored answer for the review view. Booleans come
// out as "True"/"False", multiple choice selections as the option text. A
// nil result means the question was not answered.
func DisplayAnswer(question *models.Question, raw []byte) *string {
	if isNullAnswer(raw) {
		return nil
	}

	switch question.Type {
	case models.TrueFalse:
		var value bool
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil
		}
		s := boolDisplay(value)
		return &s
	case models.MultipleChoice:
		var selected string
		if err := json.Unmarshal(raw, &selected); err != nil {
			return nil
		}
		s := optionText(question, selected)
		return &s
	default:
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil
		}
		return &value
	}
}

// CorrectAnswerDisplay renders the question's correct answer for feedback
// and review. Essays have no single correct answer; the sample answer is
// shown when present.
func CorrectAnswerDisplay(question *models.Question) string {
	switch question.Type {
	case models.MultipleChoice:
		var key models.MultipleChoiceKey
		if err := json.Unmarshal(question.Answer, &key); err != nil {
			return ""
		}
		return optionText(question, key.CorrectOption)
	case models.TrueFalse:
		var key models.TrueFalseKey
		if err := json.Unmarshal(question.Answer, &key); err != nil {
			return ""
		}
		return boolDisplay(key.CorrectAnswer)
	case models.ShortAnswer:
		var key models.ShortAnswerKey
		if err := json.Unmarshal(question.Answer, &key); err != nil || len(key.AcceptedAnswers) == 0 {
			return ""
		}
		return key.AcceptedAnswers[0]
	case models.FillInBlank:
		var key models.FillInBlankKey
		if err := json.Unmarshal(question.Answer, &key); err != nil || len(key.AcceptedAnswers) == 0 {
			return ""
		}
		return key.AcceptedAnswers[0]
	case models.Essay:
		var key models.EssayKey
		if err := json.Unmarshal(question.Answer, &key); err != nil || key.SampleAnswer == nil {
			return ""
		}
		return *key.SampleAnswer
	default:
		return ""
	}
}

func boolDisplay(value bool) string {
	if value {
		return "True"
	}
	return "False"
}

// optionText resolves a choice id to its display text, falling back to the
// raw id when the option list does not resolve.
func optionText(question *models.Question, optionID string) string {
	var content models.MultipleChoiceContent
	if err := json.Unmarshal(question.Content, &content); err != nil {
		return optionID
	}
	for _, opt := range content.Options {
		if strings.EqualFold(opt.ID, optionID) {
			return opt.Text
		}
	}
	return optionID
}

func compareStrings(a, b string, caseSensitive bool) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if !caseSensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func normalizeForCompare(s string, caseSensitive bool) string {
	s = strings.TrimSpace(s)
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

// stringSimilarity is 1 - editDistance/maxLen, in [0, 1].
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minOf(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
