package negotiation

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ScenarioKind enumerates the supported negotiation scripts.
type ScenarioKind string

const (
	ScenarioInitialTooLow ScenarioKind = "Initial Offer Too Low"
	ScenarioBenefits      ScenarioKind = "Benefits Negotiation"
	ScenarioMultiple      ScenarioKind = "Multiple Offers"
	ScenarioSigningBonus  ScenarioKind = "Signing Bonus Request"
	ScenarioEquity        ScenarioKind = "Equity Negotiation"
	ScenarioRemote        ScenarioKind = "Remote Work Flexibility"
	ScenarioPromotion     ScenarioKind = "Promotion Raise"
	ScenarioCustom        ScenarioKind = "Custom"
)

var (
	// ErrUnknownScenario is returned for a scenario outside the catalog.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrMissingPlaceholder is returned when a required value for a scenario
	// cannot be resolved from the inputs.
	ErrMissingPlaceholder = errors.New("missing required placeholder")
)

// ParseScenario resolves a scenario name case-insensitively.
func ParseScenario(s string) (ScenarioKind, error) {
	k := ScenarioKind(cases.Title(language.English).String(strings.Join(strings.Fields(s), " ")))
	if _, ok := scenarios[k]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}

// Scenarios lists the catalog in display order.
func Scenarios() []ScenarioKind {
	return []ScenarioKind{
		ScenarioInitialTooLow, ScenarioBenefits, ScenarioMultiple, ScenarioSigningBonus,
		ScenarioEquity, ScenarioRemote, ScenarioPromotion, ScenarioCustom,
	}
}

// keyPoint is a template line that is dropped when any of its optional
// placeholders is unresolved.
type keyPoint struct {
	text  string
	needs []string
}

// scenarioTemplate is one variant of the script catalog. Required lists the
// placeholders without which no script can be produced.
type scenarioTemplate struct {
	required     []string
	opening      string
	keyPoints    []keyPoint
	closing      string
	alternatives []string
}

var scenarios = map[ScenarioKind]scenarioTemplate{
	ScenarioInitialTooLow: {
		required: []string{"company", "position", "offer_total", "target"},
		opening:  "Thank you for the offer for the {{.position}} role at {{.company}}. I'm excited about the team, and I'd like to talk about the compensation before I accept.",
		keyPoints: []keyPoint{
			{text: "The offer totals {{.offer_total}}; based on my research I was targeting {{.target}}."},
			{text: "The reported median for this role and location is {{.median}}, and the offer sits {{.gap_pct}} below it.", needs: []string{"median", "gap_pct"}},
			{text: "In my current work I {{.top_achievement}}, and I expect to bring the same impact here.", needs: []string{"top_achievement"}},
		},
		closing: "Would there be flexibility to bring the package closer to {{.target}}?",
		alternatives: []string{
			"If base salary is fixed, could a signing bonus close part of the gap?",
			"Could we agree on a compensation review after six months?",
		},
	},
	ScenarioBenefits: {
		required: []string{"company", "position"},
		opening:  "I appreciate the offer from {{.company}} for the {{.position}} role. Before deciding I'd like to discuss a few benefits.",
		keyPoints: []keyPoint{
			{text: "The offer includes {{.pto_days}} days of paid time off; I'd like to discuss {{.pto_ask}} days.", needs: []string{"pto_days", "pto_ask"}},
			{text: "Flexibility to work remotely {{.remote_ask}} days a week would help me do my best work.", needs: []string{"remote_ask"}},
			{text: "The benefits package is valued at {{.benefits_value}}; I'd like to understand how it compares to the market.", needs: []string{"benefits_value"}},
		},
		closing: "Is there room to adjust these terms?",
		alternatives: []string{
			"Could professional development budget be added instead?",
			"Could additional leave start after the first year?",
		},
	},
	ScenarioMultiple: {
		required: []string{"company", "competing_offer"},
		opening:  "{{.company}} is my first choice, and I want to be transparent: I have another offer of {{.competing_offer}}.",
		keyPoints: []keyPoint{
			{text: "I'd prefer to join {{.company}} if we can get closer to {{.target}}.", needs: []string{"target"}},
			{text: "The reported median for this role is {{.median}}.", needs: []string{"median"}},
		},
		closing: "Is there anything you can do to help me make this decision?",
		alternatives: []string{
			"I can share details of the other offer if that helps.",
			"When would you need my answer?",
		},
	},
	ScenarioSigningBonus: {
		required: []string{"company", "signing_bonus_ask"},
		opening:  "I'm ready to move forward with {{.company}} and I'd like to discuss a signing bonus.",
		keyPoints: []keyPoint{
			{text: "A signing bonus of {{.signing_bonus_ask}} would offset what I leave behind by changing roles."},
			{text: "I understand the base of {{.offer_base}} may be fixed within the band.", needs: []string{"offer_base"}},
		},
		closing: "Could a signing bonus of {{.signing_bonus_ask}} be included?",
		alternatives: []string{
			"Could the bonus be split across the first two paychecks?",
			"Could relocation support cover part of it?",
		},
	},
	ScenarioEquity: {
		required: []string{"company", "equity_ask"},
		opening:  "I'm excited about the long-term direction of {{.company}} and I'd like to talk about equity.",
		keyPoints: []keyPoint{
			{text: "An additional {{.equity_ask}} in annualized equity would align my incentives with the company's growth."},
			{text: "The reported median for this role is {{.median}}; equity lets us close the gap without changing base.", needs: []string{"median"}},
		},
		closing: "Would an equity adjustment of {{.equity_ask}} be possible?",
		alternatives: []string{
			"Could the vesting schedule be accelerated instead?",
			"Could a refresh grant be scheduled after the first year?",
		},
	},
	ScenarioRemote: {
		required: []string{"company", "remote_ask"},
		opening:  "Before I accept the offer from {{.company}}, I'd like to discuss working arrangements.",
		keyPoints: []keyPoint{
			{text: "Working remotely {{.remote_ask}} days a week lets me focus on deep work."},
			{text: "In my current role I {{.top_achievement}} while working remotely.", needs: []string{"top_achievement"}},
		},
		closing: "Could we agree on {{.remote_ask}} remote days a week?",
		alternatives: []string{
			"Could we start with a trial period and review after three months?",
			"Could I work remotely on fixed days each week?",
		},
	},
	ScenarioPromotion: {
		required: []string{"position", "target"},
		opening:  "I'd like to talk about my growth in the {{.position}} role and my compensation.",
		keyPoints: []keyPoint{
			{text: "Over the past year I {{.top_achievement}}.", needs: []string{"top_achievement"}},
			{text: "The reported median for this level is {{.median}}.", needs: []string{"median"}},
			{text: "I'm asking for an adjustment to {{.target}}."},
		},
		closing: "What would it take to get there this cycle?",
		alternatives: []string{
			"If the budget is closed, could we agree on a date and criteria?",
			"Could the title change now with the adjustment at the next cycle?",
		},
	},
	ScenarioCustom: {
		required: []string{"custom_ask"},
		opening:  "Thank you for taking the time to talk{{if .company}} with me about the role at {{.company}}{{end}}.",
		keyPoints: []keyPoint{
			{text: "I'd like to discuss {{.custom_ask}}."},
			{text: "For context, the reported median for this role is {{.median}}.", needs: []string{"median"}},
		},
		closing: "How can we make this work?",
		alternatives: []string{
			"Is there another way to address this?",
		},
	},
}

// ScriptDraft is a rendered script.
type ScriptDraft struct {
	Scenario             ScenarioKind `json:"scenario"`
	Opening              string       `json:"opening"`
	KeyPoints            []string     `json:"key_points"`
	ClosingStatement     string       `json:"closing_statement"`
	AlternativeResponses []string     `json:"alternative_responses"`
}

// fill renders a template against the resolved placeholders. Unresolved keys
// are reported as empty map entries so {{if .x}} works, while plain
// references fail through missingkey=error when a key is absent.
func fill(name, text string, values map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, values); err != nil {
		return "", err
	}
	return b.String(), nil
}

// render resolves a template for kind against values.
func render(kind ScenarioKind, values map[string]string) (ScriptDraft, error) {
	tpl, ok := scenarios[kind]
	if !ok {
		return ScriptDraft{}, fmt.Errorf("%w: %q", ErrUnknownScenario, kind)
	}
	for _, k := range tpl.required {
		if values[k] == "" {
			return ScriptDraft{}, fmt.Errorf("%w: %s", ErrMissingPlaceholder, k)
		}
	}
	// optional keys referenced by conditionals must exist in the map
	vals := map[string]string{"company": ""}
	for k, v := range values {
		if v != "" {
			vals[k] = v
		}
	}

	out := ScriptDraft{Scenario: kind, KeyPoints: []string{}, AlternativeResponses: []string{}}
	var err error
	if out.Opening, err = fill("opening", tpl.opening, vals); err != nil {
		return ScriptDraft{}, err
	}
	for i, kp := range tpl.keyPoints {
		if !hasAll(vals, kp.needs) {
			continue
		}
		line, err := fill(fmt.Sprintf("key_point_%d", i), kp.text, vals)
		if err != nil {
			return ScriptDraft{}, err
		}
		out.KeyPoints = append(out.KeyPoints, line)
	}
	if out.ClosingStatement, err = fill("closing", tpl.closing, vals); err != nil {
		return ScriptDraft{}, err
	}
	out.AlternativeResponses = append(out.AlternativeResponses, tpl.alternatives...)
	return out, nil
}

func hasAll(values map[string]string, keys []string) bool {
	for _, k := range keys {
		if values[k] == "" {
			return false
		}
	}
	return true
}
