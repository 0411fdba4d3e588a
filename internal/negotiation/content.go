package negotiation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// Profile is the slice of a user's profile used for content generation.
type Profile struct {
	Skills          []string `json:"skills"`
	Achievements    []string `json:"achievements"`
	Education       []string `json:"education"`
	Certifications  []string `json:"certifications"`
	YearsExperience int      `json:"years_experience"`
}

// Talking point categories.
const (
	CategoryAchievement = "achievement"
	CategorySkill       = "skill"
	CategoryCredential  = "credential"
	CategoryEducation   = "education"
	CategoryMarket      = "market"
	CategoryExperience  = "experience"
)

// Confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// maxPerCategory caps profile-derived points per category.
const maxPerCategory = 3

// TalkingPointDraft is a generated, not yet persisted talking point.
type TalkingPointDraft struct {
	Category       string `json:"category"`
	Point          string `json:"point"`
	SupportingData string `json:"supporting_data"`
	Confidence     string `json:"confidence"`
}

// ContentInput carries everything content generation reads.
type ContentInput struct {
	Company  string
	Position string
	Goals    domain.NegotiationGoals
	Offer    *domain.Offer
	Profile  Profile
	Bench    *domain.BenchmarkEntry
	// Extra supplies scenario-specific values such as competing_offer or
	// custom_ask.
	Extra map[string]string
}

// confidenceFor maps a corroborating evidence count to a confidence level.
func confidenceFor(evidence int) string {
	switch {
	case evidence >= 2:
		return ConfidenceHigh
	case evidence == 1:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// containsFold reports whether needle occurs in haystack under Unicode case
// folding. Casers are stateful, so one is created per call.
func containsFold(haystack, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return false
	}
	folder := cases.Fold()
	return strings.Contains(folder.String(haystack), folder.String(needle))
}

func quantified(s string) bool { return strings.ContainsAny(s, "0123456789") }

// GenerateTalkingPoints derives talking points from the profile and benchmark.
// Output is deterministic for identical input. Confidence counts the pieces
// of corroborating evidence behind each point: a quantified figure, a
// cross-reference between skills and achievements, a verifiable credential,
// and benchmark backing.
func GenerateTalkingPoints(in ContentInput) []TalkingPointDraft {
	var out []TalkingPointDraft
	p := in.Profile

	for _, a := range firstN(nonEmpty(p.Achievements), maxPerCategory) {
		evidence, support := 0, []string{}
		if quantified(a) {
			evidence++
			support = append(support, "quantified result")
		}
		for _, s := range p.Skills {
			if containsFold(a, s) {
				evidence++
				support = append(support, "demonstrates "+s)
				break
			}
		}
		out = append(out, TalkingPointDraft{
			Category:       CategoryAchievement,
			Point:          fmt.Sprintf("I %s.", strings.TrimSuffix(lowerFirst(a), ".")),
			SupportingData: strings.Join(support, "; "),
			Confidence:     confidenceFor(evidence),
		})
	}

	for _, s := range firstN(nonEmpty(p.Skills), maxPerCategory) {
		evidence, support := 0, []string{}
		for _, a := range p.Achievements {
			if containsFold(a, s) {
				evidence++
				support = append(support, "applied in: "+a)
				break
			}
		}
		for _, c := range p.Certifications {
			if containsFold(c, s) {
				evidence++
				support = append(support, "certified: "+c)
				break
			}
		}
		out = append(out, TalkingPointDraft{
			Category:       CategorySkill,
			Point:          fmt.Sprintf("My experience with %s maps directly to the %s role.", s, orDefault(in.Position, "target")),
			SupportingData: strings.Join(support, "; "),
			Confidence:     confidenceFor(evidence),
		})
	}

	for _, c := range firstN(nonEmpty(p.Certifications), maxPerCategory) {
		evidence, support := 1, []string{"verifiable credential"}
		for _, s := range p.Skills {
			if containsFold(c, s) {
				evidence++
				support = append(support, "covers "+s)
				break
			}
		}
		out = append(out, TalkingPointDraft{
			Category:       CategoryCredential,
			Point:          fmt.Sprintf("I hold the %s certification.", c),
			SupportingData: strings.Join(support, "; "),
			Confidence:     confidenceFor(evidence),
		})
	}

	for _, e := range firstN(nonEmpty(p.Education), 1) {
		out = append(out, TalkingPointDraft{
			Category:       CategoryEducation,
			Point:          fmt.Sprintf("My education (%s) gives me a strong foundation for this role.", e),
			SupportingData: "verifiable credential",
			Confidence:     ConfidenceMedium,
		})
	}

	if p.YearsExperience > 0 {
		out = append(out, TalkingPointDraft{
			Category:       CategoryExperience,
			Point:          fmt.Sprintf("I bring %d years of relevant experience.", p.YearsExperience),
			SupportingData: "quantified tenure",
			Confidence:     ConfidenceMedium,
		})
	}

	if b := in.Bench; b != nil && b.Median > 0 {
		evidence := 1
		support := fmt.Sprintf("%s median %s (source %s, %d)", b.Key.Industry, money(b.Median), orDefault(b.Source, "benchmark"), b.SourceYear)
		point := fmt.Sprintf("The reported median for this role and location is %s.", money(b.Median))
		if in.Offer != nil {
			total := in.Offer.ComputeTotal()
			if gap := (b.Median - total) / b.Median * 100; gap > 0 {
				evidence++
				point = fmt.Sprintf("The offer of %s is %s below the reported median of %s.", money(total), pct(gap), money(b.Median))
			}
		}
		out = append(out, TalkingPointDraft{
			Category:       CategoryMarket,
			Point:          point,
			SupportingData: support,
			Confidence:     confidenceFor(evidence),
		})
	}
	return out
}

// GenerateScript renders the script for kind. Placeholders are resolved from
// the input in one place; a missing required value yields
// ErrMissingPlaceholder and optional key points are dropped when their values
// are unavailable.
func GenerateScript(kind ScenarioKind, in ContentInput, s Settings) (ScriptDraft, error) {
	return render(kind, placeholders(in, s.withDefaults()))
}

func placeholders(in ContentInput, s Settings) map[string]string {
	v := map[string]string{
		"company":  in.Company,
		"position": in.Position,
	}
	if in.Goals.TargetSalary > 0 {
		v["target"] = money(in.Goals.TargetSalary)
	}
	if in.Goals.MinimumAcceptable > 0 {
		v["minimum"] = money(in.Goals.MinimumAcceptable)
	}
	if a := nonEmpty(in.Profile.Achievements); len(a) > 0 {
		v["top_achievement"] = strings.TrimSuffix(lowerFirst(a[0]), ".")
	}
	if sk := nonEmpty(in.Profile.Skills); len(sk) > 0 {
		v["top_skill"] = sk[0]
	}

	gap := 0.0
	if o := in.Offer; o != nil {
		total := o.ComputeTotal()
		v["offer_total"] = money(total)
		v["offer_base"] = money(o.BaseSalary)
		if o.BenefitsValue > 0 {
			v["benefits_value"] = money(o.BenefitsValue)
		}
		v["pto_days"] = fmt.Sprint(o.PTODays)
		v["pto_ask"] = fmt.Sprint(o.PTODays + s.PTOIncrementDays)
		v["remote_ask"] = fmt.Sprint(min(o.RemoteDaysPerWeek+s.RemoteIncrementDays, 5))
		gap = in.Goals.TargetSalary - total
		if b := in.Bench; b != nil && b.Median > total {
			v["gap_pct"] = pct((b.Median - total) / b.Median * 100)
		}
	} else {
		v["remote_ask"] = fmt.Sprint(s.RemoteIncrementDays)
	}
	ask := max(gap, s.MinIncrement)
	if in.Offer != nil || in.Goals.TargetSalary > 0 {
		v["signing_bonus_ask"] = money(ask)
		v["equity_ask"] = money(ask)
	}
	if b := in.Bench; b != nil && b.Median > 0 {
		v["median"] = money(b.Median)
	}
	for k, val := range in.Extra {
		v[k] = strings.TrimSpace(val)
	}
	return v
}

func nonEmpty(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func firstN(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
