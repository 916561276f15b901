package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RuleEvaluator is the pure targeting matcher. It has no side effects; the
// injected clock only stamps trace steps.
type RuleEvaluator struct {
	now func() time.Time
}

// NewRuleEvaluator creates an evaluator. A nil clock defaults to time.Now.
func NewRuleEvaluator(now func() time.Time) *RuleEvaluator {
	if now == nil {
		now = time.Now
	}
	return &RuleEvaluator{now: now}
}

// Evaluate matches one experience's targeting against a context. Every
// configured sub-rule is evaluated and traced even after an earlier one
// failed; the overall match is the AND of all sub-rule results. It never
// panics: malformed patterns and panicking predicates are non-matches.
func (ev *RuleEvaluator) Evaluate(exp Experience, ctx Context) (matched bool, reasons []string, trace []TraceStep) {
	matched = true
	configured := 0

	if exp.Targeting.URL != nil {
		configured++
		ok, reason, step := ev.evalURL(*exp.Targeting.URL, ctx.URL)
		step.Experience = exp.ID
		matched = matched && ok
		reasons = append(reasons, reason)
		trace = append(trace, step)
	}

	if exp.Targeting.Custom != nil {
		configured++
		ok, reason, step := ev.evalCustom(exp.Targeting.Custom, ctx)
		step.Experience = exp.ID
		matched = matched && ok
		reasons = append(reasons, reason)
		trace = append(trace, step)
	}

	if exp.Targeting.Trigger != nil {
		configured++
		ok, reason, step := ev.evalTrigger(*exp.Targeting.Trigger, ctx)
		step.Experience = exp.ID
		matched = matched && ok
		reasons = append(reasons, reason)
		trace = append(trace, step)
	}

	if configured == 0 {
		reasons = append(reasons, "no targeting rules configured, matches all")
	}
	return matched, reasons, trace
}

// evalURL applies the strictest configured property: equals, then contains,
// then pattern. An empty rule matches every URL.
func (ev *RuleEvaluator) evalURL(rule URLRule, url string) (bool, string, TraceStep) {
	start := ev.now()
	var ok bool
	var reason string

	switch {
	case rule.Equals != "":
		ok = url == rule.Equals
		if ok {
			reason = fmt.Sprintf("url equals %q", rule.Equals)
		} else {
			reason = fmt.Sprintf("url %q does not equal %q", url, rule.Equals)
		}
	case rule.Contains != "":
		ok = strings.Contains(url, rule.Contains)
		if ok {
			reason = fmt.Sprintf("url contains %q", rule.Contains)
		} else {
			reason = fmt.Sprintf("url %q does not contain %q", url, rule.Contains)
		}
	case rule.Pattern != "":
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			ok = false
			reason = fmt.Sprintf("url pattern %q is invalid", rule.Pattern)
		} else {
			ok = re.MatchString(url)
			if ok {
				reason = fmt.Sprintf("url matches pattern %q", rule.Pattern)
			} else {
				reason = fmt.Sprintf("url %q does not match pattern %q", url, rule.Pattern)
			}
		}
	default:
		ok = true
		reason = "url rule has no conditions, matches all"
	}

	end := ev.now()
	return ok, reason, TraceStep{
		Step:     "url",
		At:       start,
		Duration: end.Sub(start),
		Input:    map[string]any{"url": url, "rule": rule},
		Output:   map[string]any{"matched": ok},
		Passed:   ok,
	}
}

func (ev *RuleEvaluator) evalCustom(pred Predicate, ctx Context) (ok bool, reason string, step TraceStep) {
	start := ev.now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				ok = false
				reason = fmt.Sprintf("custom predicate panicked: %v", r)
			}
		}()
		ok = pred(ctx)
		if ok {
			reason = "custom predicate matched"
		} else {
			reason = "custom predicate did not match"
		}
	}()

	end := ev.now()
	return ok, reason, TraceStep{
		Step:     "custom",
		At:       start,
		Duration: end.Sub(start),
		Input:    map[string]any{"custom": ctx.Custom},
		Output:   map[string]any{"matched": ok},
		Passed:   ok,
	}
}

// evalTrigger checks the named signal in the context. Scroll-depth rules
// with a threshold require the signal's last crossed threshold to equal it
// exactly, not meet-or-exceed.
func (ev *RuleEvaluator) evalTrigger(rule TriggerRule, ctx Context) (bool, string, TraceStep) {
	start := ev.now()
	var ok bool
	var reason string

	sig, present := ctx.Triggers[rule.Name]
	switch {
	case !present || !sig.Triggered:
		ok = false
		reason = fmt.Sprintf("waiting for trigger %q", rule.Name)
	case rule.Name == TriggerScrollDepth && rule.Threshold != nil:
		ok = sig.Threshold == *rule.Threshold
		if ok {
			reason = fmt.Sprintf("scroll depth reached %d%%", *rule.Threshold)
		} else {
			reason = fmt.Sprintf("scroll depth at %d%%, waiting for exactly %d%%", sig.Threshold, *rule.Threshold)
		}
	default:
		ok = true
		reason = fmt.Sprintf("trigger %q fired", rule.Name)
	}

	end := ev.now()
	return ok, reason, TraceStep{
		Step:     "trigger",
		At:       start,
		Duration: end.Sub(start),
		Input:    map[string]any{"rule": rule, "signal": sig, "present": present},
		Output:   map[string]any{"matched": ok},
		Passed:   ok,
	}
}
