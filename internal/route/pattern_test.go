package route

import "testing"

// TestPathPatternMatch はURLテンプレートの一致判定を検証する。
func TestPathPatternMatch(t *testing.T) {
	t.Parallel()

	parser := NewPatternParser()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
		vars    map[string]string
	}{
		{name: "リテラルが一致すること", pattern: "/v1/auth/authority", path: "/v1/auth/authority", want: true, vars: map[string]string{}},
		{name: "リテラルの差異は不一致", pattern: "/v1/auth/authority", path: "/v1/auth/other", want: false},
		{name: "変数を捕捉すること", pattern: "/v1/auth/login/{wallet}", path: "/v1/auth/login/0xAbC", want: true, vars: map[string]string{"wallet": "0xAbC"}},
		{name: "変数は空セグメントに一致しない", pattern: "/v1/auth/login/{wallet}", path: "/v1/auth/login/", want: false},
		{name: "正規表現付き変数", pattern: "/items/{id:[0-9]+}", path: "/items/42", want: true, vars: map[string]string{"id": "42"}},
		{name: "正規表現付き変数の不一致", pattern: "/items/{id:[0-9]+}", path: "/items/abc", want: false},
		{name: "数量指定子を含む正規表現", pattern: "/code/{c:[a-z]{2}}", path: "/code/ja", want: true, vars: map[string]string{"c": "ja"}},
		{name: "単一ワイルドカード", pattern: "/v1/*/list", path: "/v1/nft/list", want: true, vars: map[string]string{}},
		{name: "単一ワイルドカードは複数セグメントに一致しない", pattern: "/v1/*/list", path: "/v1/a/b/list", want: false},
		{name: "二重ワイルドカードは0セグメントに一致する", pattern: "/v1/**", path: "/v1", want: true, vars: map[string]string{}},
		{name: "二重ワイルドカードは複数セグメントに一致する", pattern: "/v1/**/detail", path: "/v1/a/b/c/detail", want: true, vars: map[string]string{}},
		{name: "残りを捕捉すること", pattern: "/files/{*rest}", path: "/files/a/b.txt", want: true, vars: map[string]string{"rest": "/a/b.txt"}},
		{name: "セグメント内ワイルドカード", pattern: "/static/*.json", path: "/static/config.json", want: true, vars: map[string]string{}},
		{name: "一文字ワイルドカード", pattern: "/static/file?.txt", path: "/static/file1.txt", want: true, vars: map[string]string{}},
		{name: "末尾スラッシュは省略可能", pattern: "/v1/auth/authority", path: "/v1/auth/authority/", want: true, vars: map[string]string{}},
		{name: "デコード済みのパスをそのまま比較すること", pattern: "/users/{name}", path: "/users/a b", want: true, vars: map[string]string{"name": "a b"}},
		{name: "パスを再度デコードしないこと", pattern: "/v1/nft/**", path: "/v1/%6eft/items", want: false},
		{name: "エンコードされた文字列は変数にそのまま入ること", pattern: "/users/{name}", path: "/users/a%20b", want: true, vars: map[string]string{"name": "a%20b"}},
		{name: "大文字小文字を区別すること", pattern: "/v1/Auth", path: "/v1/auth", want: false},
		{name: "ルートパス", pattern: "/", path: "/", want: true, vars: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pp, err := parser.Parse(tt.pattern)
			if err != nil {
				t.Fatalf("Parse(%q)でエラーが発生: %v", tt.pattern, err)
			}
			vars, ok := pp.Match(tt.path)
			if ok != tt.want {
				t.Fatalf("Match(%q) = %v, want %v", tt.path, ok, tt.want)
			}
			if !ok {
				return
			}
			if len(vars) != len(tt.vars) {
				t.Fatalf("vars = %v, want %v", vars, tt.vars)
			}
			for k, v := range tt.vars {
				if vars[k] != v {
					t.Errorf("vars[%q] = %q, want %q", k, vars[k], v)
				}
			}
		})
	}
}

// TestPatternParserOptions はパーサーの設定を検証する。
func TestPatternParserOptions(t *testing.T) {
	t.Parallel()

	t.Run("大文字小文字を区別しない設定", func(t *testing.T) {
		t.Parallel()

		pp, err := NewPatternParser(WithCaseInsensitive()).Parse("/v1/Auth/{id:[a-z]+}")
		if err != nil {
			t.Fatalf("Parse()でエラーが発生: %v", err)
		}
		if !pp.Matches("/V1/auth/ABC") {
			t.Error("大文字小文字を区別しない設定で不一致になった")
		}
	})

	t.Run("末尾スラッシュを厳密に扱う設定", func(t *testing.T) {
		t.Parallel()

		pp, err := NewPatternParser(WithStrictTrailingSeparator()).Parse("/v1/auth")
		if err != nil {
			t.Fatalf("Parse()でエラーが発生: %v", err)
		}
		if pp.Matches("/v1/auth/") {
			t.Error("末尾スラッシュ付きのパスが一致した")
		}
		if !pp.Matches("/v1/auth") {
			t.Error("完全一致のパスが不一致になった")
		}
	})
}

// TestPatternParserErrors は不正なパターンの検出を検証する。
func TestPatternParserErrors(t *testing.T) {
	t.Parallel()

	parser := NewPatternParser()
	patterns := map[string]string{
		"閉じ括弧が無い":      "/v1/{wallet",
		"開き括弧が無い":      "/v1/wallet}",
		"残り捕捉が末尾でない":   "/v1/{*rest}/x",
		"変数名が重複している":   "/v1/{id}/{id}",
		"変数名が不正":       "/v1/{1id}",
		"正規表現が不正":      "/v1/{id:[0-9}",
	}
	for name, pattern := range patterns {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := parser.Parse(pattern); err == nil {
				t.Errorf("Parse(%q)でエラーが返らなかった", pattern)
			}
		})
	}
}
