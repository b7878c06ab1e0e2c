package route

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/walletgate/pkg/authority"
)

// Rule はコンパイル済みの1つのマッチルール。生成後は不変。
type Rule struct {
	// Methods は許可するHTTPメソッド（大文字）。空の場合はどのリクエストにも一致しない。
	Methods []string
	// Path は宣言されたパスパターン（ベースパス付与後）。
	Path string
	// Authorities はルール固有の権限要件。nilの場合は述語のベース権限に従う。
	Authorities *authority.PathAuthorities
	// Order は評価順。小さいほど先に評価する。
	Order int
	// Index は宣言順。Orderが同じルール間の順序に使う。
	Index int
}

// AllowsMethod はメソッドがルールで許可されているか判定する。
func (r *Rule) AllowsMethod(method string) bool {
	return slices.Contains(r.Methods, strings.ToUpper(method))
}

// String はログ出力用の表現を返す。
func (r *Rule) String() string {
	return fmt.Sprintf("%v %s (order=%d)", r.Methods, r.Path, r.Order)
}

// Matcher はリクエストがルールに該当するか判定する。
type Matcher interface {
	// Matches はメソッドとパスの両方が一致する場合にtrueを返す。
	Matches(method, path string) bool
	// PathMatches はメソッドを無視してパスだけを判定する。
	PathMatches(path string) bool
	// Rule は判定対象のルールを返す。
	Rule() *Rule
}

// patternMatcher はURLテンプレート形式のパターンで判定する。
type patternMatcher struct {
	rule    *Rule
	pattern *PathPattern
}

// NewPatternMatcher はパターン形式のMatcherを生成する。
func NewPatternMatcher(parser *PatternParser, rule *Rule) (Matcher, error) {
	pattern, err := parser.Parse(rule.Path)
	if err != nil {
		return nil, err
	}
	return &patternMatcher{rule: rule, pattern: pattern}, nil
}

func (m *patternMatcher) Matches(method, path string) bool {
	return m.rule.AllowsMethod(method) && m.pattern.Matches(path)
}

func (m *patternMatcher) PathMatches(path string) bool {
	return m.pattern.Matches(path)
}

func (m *patternMatcher) Rule() *Rule {
	return m.rule
}

// regexMatcher は正規表現の完全一致で判定する。
type regexMatcher struct {
	rule *Rule
	re   *regexp.Regexp
}

// NewRegexMatcher は正規表現形式のMatcherを生成する。
// ルールのパスは全体一致として扱う。
func NewRegexMatcher(rule *Rule) (Matcher, error) {
	re, err := regexp.Compile("^(?:" + rule.Path + ")$")
	if err != nil {
		return nil, fmt.Errorf("正規表現 %q のコンパイルに失敗: %w", rule.Path, err)
	}
	return &regexMatcher{rule: rule, re: re}, nil
}

func (m *regexMatcher) Matches(method, path string) bool {
	return m.rule.AllowsMethod(method) && m.re.MatchString(path)
}

func (m *regexMatcher) PathMatches(path string) bool {
	return m.re.MatchString(path)
}

func (m *regexMatcher) Rule() *Rule {
	return m.rule
}
