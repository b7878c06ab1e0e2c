package route

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternParser はURLテンプレート形式のパスパターンをコンパイルする。
// 1つのパーサーを複数のルールで共有してよい。状態を持たないため並行利用できる。
type PatternParser struct {
	// caseSensitive はリテラル比較で大文字小文字を区別するかどうか。
	caseSensitive bool
	// optionalTrailingSeparator は末尾スラッシュ付きのリクエストも一致させるかどうか。
	optionalTrailingSeparator bool
}

// ParserOption はPatternParserの設定を変更する。
type ParserOption func(*PatternParser)

// WithCaseInsensitive は大文字小文字を区別しない比較に切り替える。
func WithCaseInsensitive() ParserOption {
	return func(p *PatternParser) {
		p.caseSensitive = false
	}
}

// WithStrictTrailingSeparator は末尾スラッシュの有無を厳密に区別する。
func WithStrictTrailingSeparator() ParserOption {
	return func(p *PatternParser) {
		p.optionalTrailingSeparator = false
	}
}

// NewPatternParser は新しいPatternParserを生成する。
// デフォルトは大文字小文字を区別し、末尾スラッシュは省略可能。
func NewPatternParser(opts ...ParserOption) *PatternParser {
	p := &PatternParser{
		caseSensitive:             true,
		optionalTrailingSeparator: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentPattern
	segmentWildcard
	segmentMulti
	segmentCaptureRest
)

// segment はパターンの1セグメント。
type segment struct {
	kind    segmentKind
	literal string
	re      *regexp.Regexp
	name    string
}

// PathPattern はコンパイル済みのパスパターン。生成後は不変。
type PathPattern struct {
	raw                       string
	segments                  []segment
	caseSensitive             bool
	optionalTrailingSeparator bool
}

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parse はパターン文字列をコンパイルする。
//
// 対応する構文:
//   - リテラルセグメント: /v1/auth
//   - 変数: {wallet}（空でない1セグメント）、{id:[0-9]+}（正規表現付き）
//   - ワイルドカード: *（1セグメント）、**（0個以上のセグメント）
//   - 残り全体の捕捉: {*path}（末尾のみ）
//   - セグメント内ワイルドカード: *.json、file?.txt
func (p *PatternParser) Parse(pattern string) (*PathPattern, error) {
	if pattern == "" {
		pattern = "/"
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}

	parts := strings.Split(pattern[1:], "/")
	pp := &PathPattern{
		raw:                       pattern,
		segments:                  make([]segment, 0, len(parts)),
		caseSensitive:             p.caseSensitive,
		optionalTrailingSeparator: p.optionalTrailingSeparator,
	}
	seen := make(map[string]struct{})
	for i, part := range parts {
		seg, err := p.parseSegment(part)
		if err != nil {
			return nil, fmt.Errorf("パターン %q のセグメント %q が不正: %w", pattern, part, err)
		}
		if seg.kind == segmentCaptureRest && i != len(parts)-1 {
			return nil, fmt.Errorf("パターン %q: {*%s} は末尾にのみ指定できます", pattern, seg.name)
		}
		for _, name := range seg.variableNames() {
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("パターン %q: 変数 %q が重複しています", pattern, name)
			}
			seen[name] = struct{}{}
		}
		pp.segments = append(pp.segments, seg)
	}
	return pp, nil
}

// parseSegment は1セグメントを解析する。
func (p *PatternParser) parseSegment(part string) (segment, error) {
	switch {
	case part == "**":
		return segment{kind: segmentMulti}, nil
	case part == "*":
		return segment{kind: segmentWildcard}, nil
	case strings.HasPrefix(part, "{*") && strings.HasSuffix(part, "}"):
		name := part[2 : len(part)-1]
		if !variableNamePattern.MatchString(name) {
			return segment{}, fmt.Errorf("変数名 %q が不正", name)
		}
		return segment{kind: segmentCaptureRest, name: name}, nil
	case !strings.ContainsAny(part, "*?{}"):
		return segment{kind: segmentLiteral, literal: part}, nil
	}

	var b strings.Builder
	b.WriteString("^")
	if !p.caseSensitive {
		b.WriteString("(?i)")
	}
	for i := 0; i < len(part); i++ {
		switch c := part[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '}':
			return segment{}, fmt.Errorf("対応する { がありません")
		case '{':
			end, err := closingBrace(part, i)
			if err != nil {
				return segment{}, err
			}
			name, expr, _ := strings.Cut(part[i+1:end], ":")
			if !variableNamePattern.MatchString(name) {
				return segment{}, fmt.Errorf("変数名 %q が不正", name)
			}
			if expr == "" {
				expr = ".+"
			}
			fmt.Fprintf(&b, "(?P<%s>%s)", name, expr)
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return segment{}, fmt.Errorf("正規表現のコンパイルに失敗: %w", err)
	}
	return segment{kind: segmentPattern, re: re}, nil
}

// closingBrace はstart位置の { に対応する } の位置を返す。
// 変数の正規表現に含まれる {2} のような入れ子を考慮する。
func closingBrace(s string, start int) (int, error) {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("対応する } がありません")
}

// variableNames はセグメントが捕捉する変数名を返す。
func (s segment) variableNames() []string {
	switch s.kind {
	case segmentCaptureRest:
		return []string{s.name}
	case segmentPattern:
		var names []string
		for _, n := range s.re.SubexpNames() {
			if n != "" {
				names = append(names, n)
			}
		}
		return names
	default:
		return nil
	}
}

// String は元のパターン文字列を返す。
func (pp *PathPattern) String() string {
	return pp.raw
}

// Matches はパスがパターンに一致するか判定する。
func (pp *PathPattern) Matches(path string) bool {
	_, ok := pp.Match(path)
	return ok
}

// Match はパスがパターンに一致するか判定し、捕捉した変数を返す。
// パスはデコード済み（http.Request.URL.Path）であること。
func (pp *PathPattern) Match(path string) (map[string]string, bool) {
	parts := splitPath(path)
	if pp.optionalTrailingSeparator && len(parts) > 1 && parts[len(parts)-1] == "" {
		last := pp.segments[len(pp.segments)-1]
		if !(last.kind == segmentLiteral && last.literal == "") {
			parts = parts[:len(parts)-1]
		}
	}
	vars := make(map[string]string)
	if !pp.match(pp.segments, parts, vars) {
		return nil, false
	}
	return vars, true
}

func (pp *PathPattern) match(segs []segment, parts []string, vars map[string]string) bool {
	if len(segs) == 0 {
		return len(parts) == 0
	}
	seg := segs[0]
	switch seg.kind {
	case segmentMulti:
		for i := 0; i <= len(parts); i++ {
			if pp.match(segs[1:], parts[i:], vars) {
				return true
			}
		}
		return false
	case segmentCaptureRest:
		vars[seg.name] = "/" + strings.Join(parts, "/")
		return true
	}

	if len(parts) == 0 {
		return false
	}
	part := parts[0]
	switch seg.kind {
	case segmentLiteral:
		if pp.caseSensitive {
			if part != seg.literal {
				return false
			}
		} else if !strings.EqualFold(part, seg.literal) {
			return false
		}
	case segmentWildcard:
		if part == "" {
			return false
		}
	case segmentPattern:
		m := seg.re.FindStringSubmatch(part)
		if m == nil {
			return false
		}
		for i, name := range seg.re.SubexpNames() {
			if name != "" {
				vars[name] = m[i]
			}
		}
	}
	return pp.match(segs[1:], parts[1:], vars)
}

// splitPath はパスをセグメントに分割する。
// パスはデコード済みのものを受け取り、ここでは再度デコードしない。
func splitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}
