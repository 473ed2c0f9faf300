package filter

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/tvheim/epgdb/internal/domain"
)

// Kind is the verb of one filter rule.
type Kind int

const (
	// KindMatch includes a candidate when the rule text appears in its
	// title, episode title or either description.
	KindMatch Kind = iota
	// KindExclude excludes a candidate when the rule text appears in
	// its title.
	KindExclude
	// KindGenre includes a candidate when the rule text equals one of
	// its genres.
	KindGenre
)

// Rule is one (verb, text) pair. Text is stored trimmed and
// lowercased.
type Rule struct {
	Kind Kind
	Text string
}

// Candidate is one airing joined with its program record.
type Candidate struct {
	Entry   domain.ScheduleEntry
	Program domain.ProgramRecord
}

// Parse reads a rule file: one rule per line, evaluated in file order.
// Lines starting with "genre:" are genre rules, a leading "-" marks an
// exclude rule, anything else is a match rule. Blank lines and "#"
// comments are skipped. An empty file yields no rules, which excludes
// everything.
func Parse(r io.Reader) ([]Rule, error) {
	var rules []Rule

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "genre:"):
			rules = append(rules, Rule{
				Kind: KindGenre,
				Text: strings.ToLower(strings.TrimSpace(line[len("genre:"):])),
			})
		case strings.HasPrefix(line, "-"):
			rules = append(rules, Rule{
				Kind: KindExclude,
				Text: strings.ToLower(strings.TrimSpace(line[1:])),
			})
		default:
			rules = append(rules, Rule{
				Kind: KindMatch,
				Text: strings.ToLower(line),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read rule file")
	}

	return rules, nil
}

// ParseFile reads rules from a file path.
func ParseFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open rule file %s", path)
	}
	defer f.Close()

	return Parse(f)
}

// Include decides one candidate. Rules are evaluated in order and the
// first rule that matches, of any kind, determines the outcome: match
// and genre rules include, exclude rules exclude, later rules are
// never consulted. A candidate matching no rule is excluded. Order
// sensitivity is deliberate: an early exclude shadows a later match
// and vice versa.
func Include(rules []Rule, p domain.ProgramRecord) bool {
	for _, rule := range rules {
		switch rule.Kind {
		case KindMatch:
			haystack := strings.ToLower(p.Title + "\t" + p.EpisodeTitle + "\t" +
				p.DescriptionShort + "\t" + p.DescriptionLong)
			if strings.Contains(haystack, rule.Text) {
				return true
			}
		case KindGenre:
			for _, genre := range strings.Split(p.Genres, "\t") {
				if strings.ToLower(genre) == rule.Text {
					return true
				}
			}
		case KindExclude:
			if strings.Contains(strings.ToLower(p.Title), rule.Text) {
				return false
			}
		}
	}

	return false
}

// Apply filters candidates, preserving input order.
func Apply(rules []Rule, candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if Include(rules, c.Program) {
			out = append(out, c)
		}
	}
	return out
}
