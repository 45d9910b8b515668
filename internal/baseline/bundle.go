package baseline

import (
	"fmt"
	"strings"

	"github.com/agentic-research/buildverify/internal/buildinfo"
)

const width = 70

var (
	sectionRule = strings.Repeat("=", width)
	headerRule  = strings.Repeat("-", width)
	textRule    = ">>" + strings.Repeat("-", width-2)
)

// RenderBundle dumps every section of a bundled output file, resolving
// byte ranges against content. A range outside content is reported as
// buildinfo.ErrMalformedArtifact.
func RenderBundle(name string, bundle *buildinfo.Bundle, content string) (string, error) {
	var b strings.Builder
	b.WriteString(sectionRule + "\n")
	fmt.Fprintf(&b, "File:: %s\n", name)
	if bundle == nil || len(bundle.Sections) == 0 {
		b.WriteString(sectionRule + "\n")
		return b.String(), nil
	}
	for i, s := range bundle.Sections {
		field := fmt.Sprintf("%s[%d]", name, i)
		b.WriteString(headerRule + "\n")
		fmt.Fprintf(&b, "%s: (%d-%d)", s.Kind, s.Pos, s.End)
		if s.Data != "" {
			fmt.Fprintf(&b, ":: %s", s.Data)
		}
		if s.IsPrepend() {
			fmt.Fprintf(&b, " texts:: %d", len(s.Texts))
		}
		b.WriteByte('\n')

		if !s.IsPrepend() {
			if err := writeRange(&b, field, content, s, ""); err != nil {
				return "", err
			}
			continue
		}
		for j, t := range s.Texts {
			b.WriteString(textRule + "\n")
			fmt.Fprintf(&b, ">>%s: (%d-%d)\n", t.Kind, t.Pos, t.End)
			if err := writeRange(&b, fmt.Sprintf("%s.texts[%d]", field, j), content, t, ">>"); err != nil {
				return "", err
			}
		}
		b.WriteString(textRule + "\n")
	}
	b.WriteString(sectionRule + "\n")
	return b.String(), nil
}

func writeRange(b *strings.Builder, field, content string, s buildinfo.Section, prefix string) error {
	if s.Pos < 0 || s.End > len(content) || s.Pos > s.End {
		return &buildinfo.MalformedError{
			Field:  field,
			Reason: fmt.Sprintf("range %d..%d outside content of length %d", s.Pos, s.End, len(content)),
		}
	}
	text := strings.TrimSuffix(content[s.Pos:s.End], "\n")
	if text == "" {
		return nil
	}
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(prefix + line + "\n")
	}
	return nil
}
