package route

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/walletgate/pkg/authority"
)

// Policy は一致結果から通過可否を決める方針。
type Policy string

const (
	// MatchIfContains はいずれかのルールに一致した場合に通過させる。
	MatchIfContains Policy = "MATCH_IF_CONTAINS_IN_LIST"
	// MatchIfNotContains はどのルールにも一致しなかった場合に通過させる。
	MatchIfNotContains Policy = "MATCH_IF_NOT_CONTAINS_IN_LIST"
)

// ParsePolicy は文字列をPolicyに変換する。空文字列はdefを返す。
func ParsePolicy(s string, def Policy) (Policy, error) {
	switch Policy(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case MatchIfContains:
		return MatchIfContains, nil
	case MatchIfNotContains:
		return MatchIfNotContains, nil
	default:
		return "", fmt.Errorf("不明なpolicy: %q", s)
	}
}

// Resolution は1リクエストに対する述語の評価結果。
type Resolution struct {
	// Rule は一致したルール。一致しなかった場合はnil。
	Rule *Rule
	// Pass は方針に照らして述語が成立したかどうか。
	// セキュリティ述語では認証を要求することを、ルーティング述語では経路が決まったことを意味する。
	Pass bool
	// Authorities は要求される権限。nilの場合は認証不要。
	Authorities *authority.PathAuthorities
	// AllowedMethods はパスのみ一致したルールのメソッド。ルールが一致しなかった場合にのみ設定する。
	AllowedMethods []string
}

// Predicate はソート済みのMatcher列と方針を組にした評価器。
// 生成後は不変で、並行するリクエストから共有して使える。
type Predicate struct {
	secured  bool
	policy   Policy
	base     authority.PathAuthorities
	matchers []Matcher
}

// NewPredicate はPredicateを生成する。matchersは評価順に並んでいる必要がある。
func NewPredicate(policy Policy, secured bool, base authority.PathAuthorities, matchers []Matcher) *Predicate {
	return &Predicate{
		secured:  secured,
		policy:   policy,
		base:     base,
		matchers: slices.Clone(matchers),
	}
}

// Policy は評価方針を返す。
func (p *Predicate) Policy() Policy {
	return p.policy
}

// Rules は評価順のルール一覧を返す。
func (p *Predicate) Rules() []*Rule {
	rules := make([]*Rule, 0, len(p.matchers))
	for _, m := range p.matchers {
		rules = append(rules, m.Rule())
	}
	return rules
}

// Resolve はリクエストを評価する。最初に一致したルールを採用し、
// 同じ入力に対しては常に同じ結果を返す。
func (p *Predicate) Resolve(method, path string) Resolution {
	var matched *Rule
	var allowed []string
	for _, m := range p.matchers {
		if m.Matches(method, path) {
			matched = m.Rule()
			break
		}
		if m.PathMatches(path) {
			for _, method := range m.Rule().Methods {
				if !slices.Contains(allowed, method) {
					allowed = append(allowed, method)
				}
			}
		}
	}

	res := Resolution{Rule: matched}
	if p.policy == MatchIfNotContains {
		res.Pass = matched == nil
	} else {
		res.Pass = matched != nil
	}
	if matched == nil {
		slices.Sort(allowed)
		res.AllowedMethods = allowed
	}

	switch {
	case matched != nil && matched.Authorities != nil && matched.Authorities.HaveAuth():
		auth := *matched.Authorities
		res.Authorities = &auth
	case p.secured && (matched != nil || p.policy == MatchIfNotContains):
		auth := p.base
		res.Authorities = &auth
	}
	return res
}
