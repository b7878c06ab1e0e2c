package route

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/walletgate/pkg/authority"
)

// MatcherType はマッチャーの種類。
type MatcherType string

const (
	// MVC はURLテンプレート形式のパターン。
	MVC MatcherType = "MVC"
	// Regex は正規表現。
	Regex MatcherType = "REGEX"
)

// parseMatcherType は文字列をMatcherTypeに変換する。空文字列はdefを返す。
func parseMatcherType(s string, def MatcherType) (MatcherType, error) {
	switch MatcherType(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case MVC:
		return MVC, nil
	case Regex:
		return Regex, nil
	default:
		return "", fmt.Errorf("不明なtype: %q", s)
	}
}

// MatchDeclaration は1つのマッチルールの宣言。
type MatchDeclaration struct {
	Methods     []string                   `yaml:"methods"`
	Path        string                     `yaml:"path"`
	Authorities *authority.PathAuthorities `yaml:"authorities"`
	Order       *int                       `yaml:"order"`
}

// SecurityDeclaration は認証が必要なパスの宣言。
type SecurityDeclaration struct {
	// Policy はMATCH_IF_CONTAINS_IN_LISTまたはMATCH_IF_NOT_CONTAINS_IN_LIST。
	Policy string `yaml:"matchType"`
	// Type はMVCまたはREGEX。デフォルトはREGEX。
	Type string `yaml:"type"`
	// AddBasePath はパスの前にベースパスを付与するかどうか。
	AddBasePath bool `yaml:"addBasePath"`
	// BaseAuthorities はルール固有の権限が無い場合に要求する権限。
	BaseAuthorities authority.PathAuthorities `yaml:"baseAuthorities"`
	Matches         []MatchDeclaration        `yaml:"matches"`
}

// ProxyDeclaration はバックエンドへの転送ルートの宣言。
type ProxyDeclaration struct {
	Name            string             `yaml:"name"`
	Matches         []MatchDeclaration `yaml:"matches"`
	MicroserviceURI string             `yaml:"microserviceUri"`
	// MatchType はルートの成立条件。デフォルトはMATCH_IF_CONTAINS_IN_LIST。
	MatchType string `yaml:"matchType"`
	// Type はMVCまたはREGEX。デフォルトはMVC。
	Type string `yaml:"type"`
	// BasePathFilter は転送前にベースパスを取り除くかどうか。未指定の場合はtrue。
	BasePathFilter *bool   `yaml:"basePathFilter"`
	Order          *int    `yaml:"order"`
	BasePath       *string `yaml:"basePath"`
	// AddBasePath はパスの前にベースパスを付与するかどうか。未指定の場合はtrue。
	AddBasePath   *bool    `yaml:"addBasePath"`
	EncryptFields []string `yaml:"encryptFields"`
	APIKey        string   `yaml:"apiKey"`
}

// Config はルート宣言全体。デシリアライズ済みの値を受け取る。
type Config struct {
	// BasePath は全ルート共通のベースパス（例: /api）。
	BasePath string              `yaml:"basePath"`
	Security SecurityDeclaration `yaml:"security"`
	Proxy    []ProxyDeclaration  `yaml:"proxy"`
}

// Route はコンパイル済みの転送ルート。生成後は不変。
type Route struct {
	// Name はルート名。
	Name string
	// Target は転送先のマイクロサービスURI。
	Target *url.URL
	// EncryptFields は暗号化対象のフィールド名。
	EncryptFields []string
	// APIKey は転送先に付与するサービス認証キー。空の場合は付与しない。
	APIKey string
	// StripBasePath は転送前にBasePathを取り除くかどうか。
	StripBasePath bool
	// BasePath はルートのベースパス。
	BasePath string
	// Order はルートの評価順。
	Order int

	predicate *Predicate
}

// Predicate はルートの判定に使う述語を返す。
func (r *Route) Predicate() *Predicate {
	return r.predicate
}

// ForwardPath は転送先に渡すパスを返す。
func (r *Route) ForwardPath(path string) string {
	if r.StripBasePath && r.BasePath != "" && strings.HasPrefix(path, r.BasePath) {
		path = strings.TrimPrefix(path, r.BasePath)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	return path
}

// RuleSet はコンパイル済みのルート表。生成後は不変で、並行するリクエストから共有して使える。
type RuleSet struct {
	// Security はセキュリティ述語。
	Security *Predicate
	// Routes は評価順の転送ルート。
	Routes []*Route
}

// ResolveRoute は最初に成立したルートとその評価結果を返す。
// どのルートも成立しなかった場合、Resolutionには全ルートで集めた許可メソッドが入る。
func (rs *RuleSet) ResolveRoute(method, path string) (*Route, Resolution) {
	var allowed []string
	for _, r := range rs.Routes {
		res := r.predicate.Resolve(method, path)
		if res.Pass {
			return r, res
		}
		for _, m := range res.AllowedMethods {
			if !slices.Contains(allowed, m) {
				allowed = append(allowed, m)
			}
		}
	}
	slices.Sort(allowed)
	return nil, Resolution{AllowedMethods: allowed}
}

// Builder は宣言からRuleSetを組み立てる。
type Builder struct {
	parser *PatternParser
}

// NewBuilder は新しいBuilderを生成する。parserはMVC形式のルールで共有する。
func NewBuilder(parser *PatternParser) *Builder {
	return &Builder{parser: parser}
}

// Build は宣言をコンパイルする。同じ入力からは常に同じ順序のRuleSetを返す。
func (b *Builder) Build(cfg Config) (*RuleSet, error) {
	security, err := b.buildSecurity(cfg.BasePath, cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("セキュリティ設定のコンパイルに失敗: %w", err)
	}

	routes := make([]*Route, 0, len(cfg.Proxy))
	for i, decl := range cfg.Proxy {
		r, err := b.buildRoute(cfg.BasePath, i, decl)
		if err != nil {
			return nil, fmt.Errorf("ルート %q のコンパイルに失敗: %w", routeName(i, decl.Name), err)
		}
		routes = append(routes, r)
	}
	slices.SortStableFunc(routes, func(a, b *Route) int {
		return a.Order - b.Order
	})

	return &RuleSet{Security: security, Routes: routes}, nil
}

func (b *Builder) buildSecurity(basePath string, decl SecurityDeclaration) (*Predicate, error) {
	policy, err := ParsePolicy(decl.Policy, MatchIfContains)
	if err != nil {
		return nil, err
	}
	typ, err := parseMatcherType(decl.Type, Regex)
	if err != nil {
		return nil, err
	}
	base, err := normalizeAuthorities(decl.BaseAuthorities)
	if err != nil {
		return nil, fmt.Errorf("baseAuthorities: %w", err)
	}
	prefix := ""
	if decl.AddBasePath {
		prefix = basePath
	}
	matchers, err := b.compileMatches(prefix, typ, decl.Matches)
	if err != nil {
		return nil, err
	}
	return NewPredicate(policy, true, base, matchers), nil
}

func (b *Builder) buildRoute(basePath string, index int, decl ProxyDeclaration) (*Route, error) {
	if decl.MicroserviceURI == "" {
		return nil, fmt.Errorf("microserviceUriが指定されていません")
	}
	target, err := url.Parse(decl.MicroserviceURI)
	if err != nil {
		return nil, fmt.Errorf("microserviceUri %q が不正: %w", decl.MicroserviceURI, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("microserviceUri %q は絶対URIである必要があります", decl.MicroserviceURI)
	}
	policy, err := ParsePolicy(decl.MatchType, MatchIfContains)
	if err != nil {
		return nil, err
	}
	typ, err := parseMatcherType(decl.Type, MVC)
	if err != nil {
		return nil, err
	}

	routeBase := basePath
	if decl.BasePath != nil {
		routeBase = *decl.BasePath
	}
	prefix := routeBase
	if decl.AddBasePath != nil && !*decl.AddBasePath {
		prefix = ""
	}
	matchers, err := b.compileMatches(prefix, typ, decl.Matches)
	if err != nil {
		return nil, err
	}

	return &Route{
		Name:          routeName(index, decl.Name),
		Target:        target,
		EncryptFields: slices.Clone(decl.EncryptFields),
		APIKey:        decl.APIKey,
		StripBasePath: decl.BasePathFilter == nil || *decl.BasePathFilter,
		BasePath:      routeBase,
		Order:         orderOf(decl.Order),
		predicate:     NewPredicate(policy, false, authority.Public(), matchers),
	}, nil
}

// compileMatches は宣言をMatcherに変換し、評価順に並べる。
func (b *Builder) compileMatches(prefix string, typ MatcherType, decls []MatchDeclaration) ([]Matcher, error) {
	matchers := make([]Matcher, 0, len(decls))
	for i, d := range decls {
		var auth *authority.PathAuthorities
		if d.Authorities != nil {
			a, err := normalizeAuthorities(*d.Authorities)
			if err != nil {
				return nil, fmt.Errorf("matches[%d].authorities: %w", i, err)
			}
			auth = &a
		}
		methods := make([]string, 0, len(d.Methods))
		for _, m := range d.Methods {
			m = strings.ToUpper(strings.TrimSpace(m))
			if m != "" && !slices.Contains(methods, m) {
				methods = append(methods, m)
			}
		}
		rule := &Rule{
			Methods:     methods,
			Path:        prefix + d.Path,
			Authorities: auth,
			Order:       orderOf(d.Order),
			Index:       i,
		}

		var (
			m   Matcher
			err error
		)
		if typ == Regex {
			m, err = NewRegexMatcher(rule)
		} else {
			m, err = NewPatternMatcher(b.parser, rule)
		}
		if err != nil {
			return nil, fmt.Errorf("matches[%d]: %w", i, err)
		}
		matchers = append(matchers, m)
	}
	slices.SortStableFunc(matchers, func(a, b Matcher) int {
		if d := a.Rule().Order - b.Rule().Order; d != 0 {
			return d
		}
		return a.Rule().Index - b.Rule().Index
	})
	return matchers, nil
}

// normalizeAuthorities はcheckModeを検証し、デフォルト値を埋めた複製を返す。
func normalizeAuthorities(p authority.PathAuthorities) (authority.PathAuthorities, error) {
	outer, err := authority.ParseCheckMode(string(p.CheckMode), authority.All)
	if err != nil {
		return authority.PathAuthorities{}, err
	}
	out := authority.PathAuthorities{
		Authorities: make([]authority.PathAuthority, 0, len(p.Authorities)),
		CheckMode:   outer,
	}
	for _, a := range p.Authorities {
		mode, err := authority.ParseCheckMode(string(a.CheckMode), authority.Any)
		if err != nil {
			return authority.PathAuthorities{}, err
		}
		out.Authorities = append(out.Authorities, authority.PathAuthority{
			List:      slices.Clone(a.List),
			CheckMode: mode,
		})
	}
	return out, nil
}

func orderOf(order *int) int {
	if order == nil {
		return 0
	}
	return *order
}

func routeName(index int, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("proxy[%d]", index)
}
