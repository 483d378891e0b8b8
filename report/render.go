package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/sentinel/codec"
	"github.com/hupe1980/sentinel/fingerprint"
)

// Renderer writes results to a stream.
type Renderer interface {
	Render(w io.Writer, results ...Result) error
}

// Titles maps verifier names to headings used by TextRenderer.
var Titles = map[string]string{
	"integrity": "Sentinel Integrity Watchdog",
	"drift":     "Sentinel Semantic Drift Analyzer",
}

// TextRenderer writes line-oriented, human-readable diagnostics.
type TextRenderer struct{}

// Render implements Renderer.
func (TextRenderer) Render(w io.Writer, results ...Result) error {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		title := Titles[r.Verifier]
		if title == "" {
			title = r.Verifier
		}
		fmt.Fprintf(&b, "--- %s ---\n", title)

		for _, f := range r.Findings {
			writeFinding(&b, f)
		}

		if len(r.Critical) > 0 {
			fmt.Fprintf(&b, "[FAIL] critical: %s\n", strings.Join(r.Critical, ", "))
		}
		if r.Passed {
			fmt.Fprintf(&b, "[PASS] %s passed\n", r.Verifier)
		} else {
			fmt.Fprintf(&b, "[FAIL] %s failed\n", r.Verifier)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeFinding(b *strings.Builder, f Finding) {
	tag := "[PASS]"
	switch f.Status {
	case StatusFail:
		tag = "[FAIL]"
	case StatusSkip:
		tag = "[WARN]"
	}

	fmt.Fprintf(b, "%s %s", tag, f.Message)
	if f.Class != ClassNone && f.Status != StatusPass {
		fmt.Fprintf(b, " (%s)", f.Class)
	}
	b.WriteString("\n")

	if f.Expected == "" && f.Actual == "" {
		return
	}
	if f.Status == StatusPass {
		// Passing checks show a single preview line.
		fmt.Fprintf(b, "       %s\n", display(f.Kind, f.Actual))
		return
	}
	fmt.Fprintf(b, "       Expected: %s\n", display(f.Kind, f.Expected))
	fmt.Fprintf(b, "       Actual:   %s\n", display(f.Kind, f.Actual))
}

func display(kind ValueKind, v string) string {
	if v == "" {
		return "<none>"
	}
	if kind == ValueFingerprint {
		return fingerprint.Fingerprint(v).Short()
	}
	return v
}

// JSONRenderer writes results as a single JSON document.
type JSONRenderer struct {
	// Codec encodes the document. If nil, codec.Default is used.
	Codec codec.Codec
}

// Render implements Renderer.
func (r JSONRenderer) Render(w io.Writer, results ...Result) error {
	c := r.Codec
	if c == nil {
		c = codec.Default
	}

	doc := struct {
		Passed   bool     `json:"passed"`
		ExitCode int      `json:"exit_code"`
		Results  []Result `json:"results"`
	}{
		Passed:   Passed(results...),
		ExitCode: ExitCode(results...),
		Results:  results,
	}

	data, err := c.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// RendererByName returns a built-in renderer ("text" or "json").
func RendererByName(name string) (Renderer, bool) {
	switch name {
	case "", "text":
		return TextRenderer{}, true
	case "json":
		return JSONRenderer{}, true
	default:
		return nil, false
	}
}
