package generate

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var promptFS embed.FS

// emptyContext stands in for a slot that has no content yet.
const emptyContext = "No code yet. Start from scratch."

// PromptSection is a named section of a rendered prompt. Name becomes a
// markdown heading unless Heading overrides it. Text may contain {key}
// placeholders. Append names a data key whose value is written verbatim
// after Text; the section is dropped when that value is empty.
type PromptSection struct {
	Name    string
	Text    string
	Append  string
	Heading string
}

type promptSectionDetail struct {
	Text    string `yaml:"text"`
	Append  string `yaml:"append"`
	Heading string `yaml:"heading"`
}

// PromptDef is an ordered list of sections, written in YAML as a sequence
// of single-key mappings.
type PromptDef []PromptSection

// UnmarshalYAML implements yaml.Unmarshaler.
func (pd *PromptDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("prompt definition must be a YAML sequence, got %v", value.Kind)
	}
	sections := make(PromptDef, 0, len(value.Content))
	for i, item := range value.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) < 2 {
			return fmt.Errorf("section %d: expected a single-key mapping", i)
		}
		sec := PromptSection{Name: item.Content[0].Value}
		val := item.Content[1]
		switch val.Kind {
		case yaml.ScalarNode:
			sec.Text = val.Value
		case yaml.MappingNode:
			var detail promptSectionDetail
			if err := val.Decode(&detail); err != nil {
				return fmt.Errorf("section %q: %w", sec.Name, err)
			}
			sec.Text = detail.Text
			sec.Append = detail.Append
			sec.Heading = detail.Heading
		default:
			return fmt.Errorf("section %q: unexpected YAML node kind %v", sec.Name, val.Kind)
		}
		sections = append(sections, sec)
	}
	*pd = sections
	return nil
}

// ParsePromptDef parses a YAML document into a PromptDef.
func ParsePromptDef(data []byte) (PromptDef, error) {
	var def PromptDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if len(def) == 0 {
		return nil, fmt.Errorf("prompt definition is empty")
	}
	return def, nil
}

func loadPromptDef(name string) PromptDef {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		panic(fmt.Sprintf("generate: embedded prompt %s: %v", name, err))
	}
	def, err := ParsePromptDef(data)
	if err != nil {
		panic(fmt.Sprintf("generate: embedded prompt %s: %v", name, err))
	}
	return def
}

var (
	pagePrompt  = loadPromptDef("page.yaml")
	multiPrompt = loadPromptDef("multi.yaml")
)

func sectionHeading(sec PromptSection) string {
	if sec.Heading != "" {
		return sec.Heading
	}
	return "# " + strings.ToUpper(strings.ReplaceAll(sec.Name, "_", " "))
}

// Render assembles the prompt. Placeholders in Text are filled in a single
// pass, so a value that itself contains a placeholder is not expanded again.
// Appended values are written verbatim.
func (pd PromptDef) Render(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", data[k])
	}
	fill := strings.NewReplacer(pairs...)

	var buf strings.Builder
	first := true
	for _, sec := range pd {
		if sec.Append != "" && data[sec.Append] == "" {
			continue
		}
		if !first {
			buf.WriteString("\n")
		}
		first = false

		buf.WriteString(sectionHeading(sec))
		buf.WriteString("\n\n")
		if sec.Text != "" {
			buf.WriteString(fill.Replace(sec.Text))
		}
		if sec.Append != "" {
			buf.WriteString("\n")
			buf.WriteString(data[sec.Append])
			buf.WriteString("\n")
		}
	}
	return buf.String()
}
