package generate

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/models"
)

const summaryLen = 20

var (
	openFenceRe  = regexp.MustCompile("^```[A-Za-z0-9_+.-]*$")
	closeFenceRe = regexp.MustCompile("^```$")
	nonNameRe    = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

	labelPolicy = bluemonday.StrictPolicy()
)

// StripFences removes a markdown code fence wrapped around text: an opening
// line of three backticks with an optional language tag, and a closing line
// of three backticks. Whitespace around either marker is ignored. Text
// without a wrapping fence is returned trimmed and otherwise unchanged.
func StripFences(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > 0 && openFenceRe.MatchString(strings.TrimSpace(lines[0])) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && closeFenceRe.MatchString(strings.TrimSpace(lines[n-1])) {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// SummaryLabel derives the pre-generation snapshot label from the first
// characters of the instruction, with markup removed.
func SummaryLabel(prompt string) string {
	plain := html.UnescapeString(labelPolicy.Sanitize(prompt))
	r := []rune(strings.TrimSpace(plain))
	if len(r) > summaryLen {
		r = r[:summaryLen]
	}
	s := strings.Trim(nonNameRe.ReplaceAllString(string(r), "_"), "_")
	if s == "" {
		s = "Update"
	}
	return models.LabelAIPrefix + s
}

// multiReply is the structured reply of multi-artifact generations.
type multiReply struct {
	HTML   *string `json:"html"`
	Server *string `json:"server"`
}

// DecodeMulti parses a structured multi-artifact reply. Slots absent from
// the object are left out of the result.
func DecodeMulti(text string) (models.Artifacts, error) {
	var reply multiReply
	if err := json.Unmarshal([]byte(StripFences(text)), &reply); err != nil {
		return nil, fmt.Errorf("%w: malformed structured reply: %v", apperr.ErrTransport, err)
	}
	out := models.Artifacts{}
	if reply.HTML != nil {
		out[models.SlotPage] = StripFences(*reply.HTML)
	}
	if reply.Server != nil {
		out[models.SlotServer] = StripFences(*reply.Server)
	}
	return out, nil
}
