package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/thinkscotty/newsroom/internal/models"
)

const (
	promptItemLimit    = 20
	promptSummaryRunes = 200
)

// BuildAnalysisPrompt builds the single batched request covering the first
// twenty items.
func BuildAnalysisPrompt(items []models.FeedItem) string {
	if len(items) > promptItemLimit {
		items = items[:promptItemLimit]
	}

	blocks := make([]string, 0, len(items))
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = models.NoTitle
		}
		summary, _ := truncateRunes(item.Summary, promptSummaryRunes)
		blocks = append(blocks, fmt.Sprintf("제목: %s\n요약: %s...", title, summary))
	}

	var sb strings.Builder
	sb.WriteString("다음 IT 뉴스들을 IT 전문가 관점에서 분석해주세요.\n\n")
	sb.WriteString(strings.Join(blocks, "\n\n"))
	sb.WriteString(`

다음 JSON 형식으로 응답해주세요:
{
    "summary": "전체 뉴스를 종합한 3줄 요약",
    "keywords": ["키워드1", "키워드2", "키워드3"],
    "trends": "주요 트렌드나 인사이트"
}

반드시 유효한 JSON 형식으로만 응답해주세요.`)
	return sb.String()
}

// BuildVisualPrompt asks a text model to turn a Korean digest into an
// English description an image model can draw.
func BuildVisualPrompt(summary string, keywords []string) string {
	var sb strings.Builder
	sb.WriteString("You write prompts for an image generation model.\n")
	sb.WriteString("Turn the following Korean IT news summary into one English paragraph describing a clean, modern infographic-style illustration (16:9, dark background, abstract icons and charts).\n")
	sb.WriteString("Do not ask for any written text, letters or numbers in the image. Reply with the prompt only.\n\n")
	sb.WriteString("Summary:\n")
	sb.WriteString(summary)
	if len(keywords) > 0 {
		sb.WriteString("\n\nKeywords: ")
		sb.WriteString(strings.Join(keywords, ", "))
	}
	return sb.String()
}

// CleanJSONResponse returns the body of the first ```json fence, or of the
// first bare ``` fence, or the trimmed input when there is no fence.
func CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	if _, after, ok := strings.Cut(response, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(response, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(dropLanguageTag(body))
	}
	return response
}

// dropLanguageTag removes a fence info string such as "JSON" or "js".
func dropLanguageTag(body string) string {
	first, rest, ok := strings.Cut(body, "\n")
	if !ok {
		return body
	}
	tag := strings.TrimSpace(first)
	if tag == "" {
		return rest
	}
	for _, r := range tag {
		if !unicode.IsLetter(r) {
			return body
		}
	}
	return rest
}

// ExtractJSON strips fences and, if what remains still is not an object,
// falls back to the outermost {...} span.
func ExtractJSON(raw string) string {
	cleaned := CleanJSONResponse(raw)
	if looksLikeObject(cleaned) {
		return cleaned
	}
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			return cleaned[start : end+1]
		}
	}
	return cleaned
}

func looksLikeObject(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// analysisFields is the model's JSON reply. Fields are decoded leniently
// because models sometimes return lines as arrays or keywords as one string.
type analysisFields struct {
	Summary  string
	Keywords []string
	Trends   string
}

func parseAnalysis(text string) (analysisFields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return analysisFields{}, err
	}
	if raw == nil {
		return analysisFields{}, fmt.Errorf("response is null")
	}
	return analysisFields{
		Summary:  lenientText(raw["summary"]),
		Keywords: lenientList(raw["keywords"]),
		Trends:   lenientText(raw["trends"]),
	}, nil
}

func lenientText(msg json.RawMessage) string {
	if len(msg) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(msg, &s) == nil {
		return s
	}
	var lines []any
	if json.Unmarshal(msg, &lines) == nil {
		parts := make([]string, 0, len(lines))
		for _, l := range lines {
			parts = append(parts, fmt.Sprint(l))
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func lenientList(msg json.RawMessage) []string {
	out := []string{}
	if len(msg) == 0 {
		return out
	}
	var list []any
	if json.Unmarshal(msg, &list) == nil {
		for _, v := range list {
			if v == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var s string
	if json.Unmarshal(msg, &s) == nil {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// truncateRunes cuts s to at most n code points and reports whether it cut.
func truncateRunes(s string, n int) (string, bool) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
