package logscan

import (
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// genLine builds lines out of fragments that hit every rule, mixed with
// arbitrary text.
func genLine(t *rapid.T, label string) string {
	fragments := rapid.SliceOfN(rapid.SampledFrom([]string{
		ErrorMarker, CriticalMarker, WarningMarker,
		SlowQueryPhrase, SlowThresholdPhrase,
		"INFO", " ", "disk full", "query", "42ms", "",
	}), 0, 6).Draw(t, label+"_fragments")
	noise := rapid.String().Draw(t, label+"_noise")
	return strings.Join(fragments, " ") + noise
}

func genLines(t *rapid.T) []string {
	n := rapid.IntRange(0, 40).Draw(t, "n")
	lines := make([]string, n)
	for i := range lines {
		lines[i] = genLine(t, "line")
	}
	return lines
}

func TestProperty_ErrorAlwaysWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prefix := genLine(t, "prefix")
		suffix := genLine(t, "suffix")
		line := prefix + ErrorMarker + suffix

		if got := Classify(line); got != Error {
			t.Fatalf("Classify(%q) = %v, want Error", line, got)
		}
	})
}

func TestProperty_SummaryInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := genLines(t)
		s := Summarize(lines)

		if s.TotalLines != len(lines) {
			t.Fatalf("TotalLines = %d, want %d", s.TotalLines, len(lines))
		}
		if s.ErrorCount+s.WarningCount+s.CriticalCount > s.TotalLines {
			t.Fatalf("classified lines exceed total: %+v", s)
		}
		if s.SlowQueryCount > s.WarningCount {
			t.Fatalf("slow queries exceed warnings: %+v", s)
		}

		var normal int
		for _, l := range lines {
			if Classify(l) == Normal {
				normal++
			}
		}
		if s.TotalLines != s.ErrorCount+s.WarningCount+s.CriticalCount+normal {
			t.Fatalf("counts do not partition the input: %+v normal=%d", s, normal)
		}
	})
}

func TestProperty_FindCriticalIsOrderedSubsequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := genLines(t)
		issues := FindCritical(lines)

		j := 0
		for _, l := range lines {
			if j < len(issues) && l == issues[j] && Classify(l).IsAlertable() {
				j++
			}
		}
		if j != len(issues) {
			t.Fatalf("issues %q are not an in-order subsequence of %q", issues, lines)
		}

		s := NewCriticalFilter().Summarize(lines)
		if len(issues) != s.ErrorCount+s.CriticalCount+s.SlowQueryCount {
			t.Fatalf("len(issues)=%d does not match counts %+v", len(issues), s)
		}
	})
}

func TestProperty_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := genLines(t)

		if Summarize(lines) != Summarize(lines) {
			t.Fatal("Summarize is not deterministic")
		}
		if !reflect.DeepEqual(FindCritical(lines), FindCritical(lines)) {
			t.Fatal("FindCritical is not deterministic")
		}
	})
}

func TestProperty_MergeMatchesConcatenation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genLines(t)
		b := genLines(t)

		merged := Summarize(a)
		merged.Merge(Summarize(b))

		if whole := Summarize(append(append([]string{}, a...), b...)); merged != whole {
			t.Fatalf("merged %+v != whole %+v", merged, whole)
		}
	})
}
