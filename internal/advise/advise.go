// Package advise asks a language model for design recommendations based on
// a report's numbers. It handles provider selection, prompt construction,
// response validation and the single repair attempt.
package advise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/synthcheck/internal/logging"
	"github.com/dshills/synthcheck/internal/schema"
)

// ErrInvalidModelOutput is returned when both the initial and the repair
// responses fail validation.
var ErrInvalidModelOutput = errors.New("advise: invalid model output after repair attempt")

// MaxRecommendations caps how many items are kept from a response.
const MaxRecommendations = 8

// Provider is the interface for LLM backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// NewProvider is the factory for creating providers. Tests replace it and
// restore the original with t.Cleanup.
var NewProvider func(providerName, model string) (Provider, error) = defaultNewProvider

// Options configures an Advisor.
type Options struct {
	// Provider is anthropic, openai or google. Empty infers it from Model.
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	// Debug logs both prompts at debug level.
	Debug bool
}

// Advisor produces recommendations for reports.
type Advisor struct {
	opts Options
	log  *slog.Logger
}

// New returns an Advisor. A nil logger discards output.
func New(opts Options, log *slog.Logger) *Advisor {
	return &Advisor{opts: opts, log: logging.OrDiscard(log)}
}

// ProviderFor infers the provider name from a model identifier.
func ProviderFor(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "openai"
	case strings.HasPrefix(m, "gemini"):
		return "google"
	default:
		return "anthropic"
	}
}

// ValidationError records a single validation failure on a response.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// response is the JSON document the model must return.
type response struct {
	Recommendations []string `json:"recommendations"`
}

// Recommend returns recommendations for report. The report is not modified.
func (a *Advisor) Recommend(ctx context.Context, report *schema.Report) ([]string, error) {
	name := a.opts.Provider
	if name == "" {
		name = ProviderFor(a.opts.Model)
	}
	provider, err := NewProvider(name, a.opts.Model)
	if err != nil {
		return nil, fmt.Errorf("advise: create provider: %w", err)
	}

	sysPrompt := systemPrompt
	userPrompt := buildUserPrompt(report)
	if a.opts.Debug {
		a.log.Debug("advisor prompt", "system", sysPrompt, "user", userPrompt)
	}

	raw, err := provider.Complete(ctx, sysPrompt, userPrompt, a.opts.MaxTokens, a.opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("advise: complete: %w", err)
	}
	recs, verrs := ValidateResponse(raw)
	if recs != nil && !needsRepair(verrs) {
		a.logNonFatal(verrs)
		return recs, nil
	}

	a.log.Warn("advisor response invalid, retrying once", "errors", len(verrs))
	raw2, err := provider.Complete(ctx, sysPrompt, buildRepairPrompt(userPrompt, raw, verrs), a.opts.MaxTokens, a.opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("advise: repair complete: %w", err)
	}
	recs2, verrs2 := ValidateResponse(raw2)
	if recs2 != nil && !needsRepair(verrs2) {
		a.logNonFatal(verrs2)
		return recs2, nil
	}
	return nil, ErrInvalidModelOutput
}

func (a *Advisor) logNonFatal(errs []ValidationError) {
	for _, e := range errs {
		a.log.Debug("advisor response adjusted", "field", e.Field, "detail", e.Message)
	}
}

// needsRepair returns true when errs include a parse or required-field
// failure.
func needsRepair(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Field == "json_parse" || e.Field == "required_field" {
			return true
		}
	}
	return false
}

// fenceRe matches a whole fenced block (``` or ~~~) and captures its body.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches an opening fence line only, for truncated responses.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// stripMarkdownFences removes code fences that models wrap around JSON.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// invalidJSONEscapeRe matches a backslash followed by a character that is
// not a valid JSON escape.
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

func fixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}

// ValidateResponse parses raw and returns the cleaned recommendations. Blank
// items are dropped, whitespace is collapsed and the list is capped at
// MaxRecommendations; those adjustments are reported as non-fatal errors.
// The returned slice is nil only on a fatal error.
func ValidateResponse(raw string) ([]string, []ValidationError) {
	var errs []ValidationError
	raw = stripMarkdownFences(raw)

	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		if err2 := json.Unmarshal([]byte(fixInvalidJSONEscapes(raw)), &resp); err2 != nil {
			return nil, append(errs, ValidationError{Field: "json_parse", Message: err.Error()})
		}
	}

	out := make([]string, 0, len(resp.Recommendations))
	for i, r := range resp.Recommendations {
		r = strings.Join(strings.Fields(r), " ")
		if r == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("recommendations[%d]", i),
				Message: "blank item dropped",
			})
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, append(errs, ValidationError{Field: "required_field", Message: "recommendations is missing or empty"})
	}
	if len(out) > MaxRecommendations {
		errs = append(errs, ValidationError{
			Field:   "recommendations",
			Message: fmt.Sprintf("%d items truncated to %d", len(out), MaxRecommendations),
		})
		out = out[:MaxRecommendations]
	}
	return out, errs
}

const systemPrompt = `You are a digital design reviewer reading logic synthesis results.

Output ONLY valid JSON of the form {"recommendations": ["...", "..."]}.
No prose, no markdown, no explanation outside the JSON.

Give at most 8 short, concrete recommendations. Base every one of them on the
numbers provided. Do not invent modules, metrics or values that are not listed.
Prioritize failed and warned thresholds, then the largest modules.
`

// buildUserPrompt lists the report's numbers. Only module names, metric
// values, estimates and verdicts are included.
func buildUserPrompt(r *schema.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DESIGN: %s (profile %s)\n", r.Title, r.Input.Profile)

	sb.WriteString("\nMODULES:\n")
	for _, m := range r.Modules {
		if !m.Stats.Present {
			fmt.Fprintf(&sb, "  %s: no data\n", m.Name)
			continue
		}
		fmt.Fprintf(&sb, "  %s:%s\n", m.Name, metricList(m.Stats.Metrics))
		if len(m.Stats.Cells) > 0 {
			fmt.Fprintf(&sb, "    gates:%s\n", gateList(m.Stats.Cells))
		}
	}
	for _, n := range r.Netlists {
		if n.Present {
			fmt.Fprintf(&sb, "  netlist %s: %d primitive gates, %d sub-module types\n",
				n.File, n.TotalPrimitiveGates, len(n.Modules))
		}
	}

	fmt.Fprintf(&sb, "\nTOTALS:%s\n", metricList(r.Totals))

	e := r.Estimate
	sb.WriteString("\nESTIMATES:\n")
	fmt.Fprintf(&sb, "  transistors: %d\n", e.Transistors)
	fmt.Fprintf(&sb, "  asic_total_area_mm2 (%s): %s\n", e.ASIC.Node, strconv.FormatFloat(e.ASIC.TotalArea, 'f', -1, 64))
	fmt.Fprintf(&sb, "  fpga_luts: %s, fpga_ffs: %s\n",
		strconv.FormatFloat(e.FPGA.LUTs, 'f', -1, 64), strconv.FormatFloat(e.FPGA.FlipFlops, 'f', -1, 64))
	fmt.Fprintf(&sb, "  sequential: %d, combinational: %d, arithmetic: %d, memory: %d\n",
		e.Complexity.Sequential, e.Complexity.Combinational, e.Complexity.Arithmetic, e.Complexity.Memory)

	sb.WriteString("\nVERDICTS:\n")
	for _, v := range r.Results {
		measured := "none"
		if v.Measured != nil {
			measured = strconv.Itoa(*v.Measured)
		}
		fmt.Fprintf(&sb, "  %s %s: measured %s, expected %s %d -> %s\n",
			v.Scope, v.Metric, measured, v.Direction.Symbol(), v.Expected, v.Status)
	}
	fmt.Fprintf(&sb, "  overall: %s\n", r.Summary.Overall)

	sb.WriteString("\nProduce the JSON now.")
	return sb.String()
}

func metricList(rec schema.MetricRecord) string {
	var sb strings.Builder
	for _, m := range schema.AllMetrics {
		if v, ok := rec.Get(m); ok {
			fmt.Fprintf(&sb, " %s=%d", m, v)
		}
	}
	return sb.String()
}

func gateList(b schema.CellBreakdown) string {
	var sb strings.Builder
	for _, g := range schema.AllGateTypes {
		if n, ok := b[g]; ok {
			fmt.Fprintf(&sb, " %s=%d", g, n)
		}
	}
	return sb.String()
}

// buildRepairPrompt includes the original prompt and the rejected response.
func buildRepairPrompt(originalUserPrompt, previousResponse string, errs []ValidationError) string {
	var sb strings.Builder
	sb.WriteString(originalUserPrompt)
	sb.WriteString("\n\nYour previous response was:\n")
	sb.WriteString(previousResponse)
	sb.WriteString("\n\nThat response was invalid. Errors:\n")
	for _, e := range errs {
		fmt.Fprintf(&sb, "  - %s\n", e.Error())
	}
	sb.WriteString("\nOutput only the corrected JSON.")
	return sb.String()
}

// defaultNewProvider dispatches to the provider implementation.
func defaultNewProvider(providerName, model string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case "anthropic", "":
		return newAnthropicProvider(model)
	case "openai":
		return newOpenAIProvider(model)
	case "google":
		return newGoogleProvider(model)
	default:
		return nil, fmt.Errorf("advise: unknown provider %q", providerName)
	}
}
