// Package authority はルートが要求する権限の表現と評価を提供する。
//
// PathAuthority は権限文字列の集合とその組み合わせ方（ANY/ALL）を持ち、
// PathAuthorities は複数のPathAuthorityを外側のモードで結合する。
// 空のリストは公開ルート（認証不要）を意味する。
package authority

import (
	"fmt"
	"slices"
	"strings"
)

// CheckMode は権限の組み合わせ方。
type CheckMode string

const (
	// Any はいずれか1つを満たせばよい。
	Any CheckMode = "ANY"
	// All はすべてを満たす必要がある。
	All CheckMode = "ALL"
)

// ParseCheckMode は文字列をCheckModeに変換する。空文字列はdefを返す。
func ParseCheckMode(s string, def CheckMode) (CheckMode, error) {
	switch CheckMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case Any:
		return Any, nil
	case All:
		return All, nil
	default:
		return "", fmt.Errorf("不明なcheckMode: %q", s)
	}
}

// PathAuthority は1つの権限要件。
type PathAuthority struct {
	// List は要求する権限文字列。空の場合は公開。
	List []string `yaml:"list" json:"list"`
	// CheckMode はListの評価方法。空の場合はANY。
	CheckMode CheckMode `yaml:"checkMode" json:"checkMode"`
}

// NoAuth は権限が不要な場合にtrueを返す。
func (a PathAuthority) NoAuth() bool {
	return len(a.List) == 0
}

// HaveAuth は権限が必要な場合にtrueを返す。
func (a PathAuthority) HaveAuth() bool {
	return !a.NoAuth()
}

// CheckHaveAuthorities は呼び出し元の権限が要件を満たすか判定する。
// 要件がある状態で呼び出し元の権限が空ならfalse。
func (a PathAuthority) CheckHaveAuthorities(profileAuth []string) bool {
	if a.NoAuth() {
		return true
	}
	if len(profileAuth) == 0 {
		return false
	}
	if a.CheckMode == All {
		for _, required := range a.List {
			if !slices.Contains(profileAuth, required) {
				return false
			}
		}
		return true
	}
	for _, required := range a.List {
		if slices.Contains(profileAuth, required) {
			return true
		}
	}
	return false
}

// PathAuthorities は複数の権限要件を外側のモードで結合したもの。
type PathAuthorities struct {
	// Authorities は内側の権限要件。
	Authorities []PathAuthority `yaml:"list" json:"list"`
	// CheckMode は内側の評価結果の結合方法。空の場合はALL。
	CheckMode CheckMode `yaml:"checkMode" json:"checkMode"`
}

// Public は認証不要を表すPathAuthoritiesを返す。
func Public() PathAuthorities {
	return PathAuthorities{CheckMode: All}
}

// Require は単一の権限要件からPathAuthoritiesを生成する。
func Require(mode CheckMode, list ...string) PathAuthorities {
	return PathAuthorities{
		Authorities: []PathAuthority{{List: list, CheckMode: mode}},
		CheckMode:   All,
	}
}

// HaveAuth はいずれかの内側要件が権限を要求する場合にtrueを返す。
func (p PathAuthorities) HaveAuth() bool {
	for _, a := range p.Authorities {
		if a.HaveAuth() {
			return true
		}
	}
	return false
}

// NoAuth は権限が不要な場合にtrueを返す。
func (p PathAuthorities) NoAuth() bool {
	return !p.HaveAuth()
}

// CheckHaveAuthorities は呼び出し元の権限が要件全体を満たすか判定する。
func (p PathAuthorities) CheckHaveAuthorities(profileAuth []string) bool {
	if p.NoAuth() {
		return true
	}
	if p.CheckMode == Any {
		for _, a := range p.Authorities {
			if a.CheckHaveAuthorities(profileAuth) {
				return true
			}
		}
		return false
	}
	for _, a := range p.Authorities {
		if !a.CheckHaveAuthorities(profileAuth) {
			return false
		}
	}
	return true
}

// String はログ出力用の表現を返す。
func (p PathAuthorities) String() string {
	parts := make([]string, 0, len(p.Authorities))
	for _, a := range p.Authorities {
		mode := a.CheckMode
		if mode == "" {
			mode = Any
		}
		parts = append(parts, fmt.Sprintf("%s%v", mode, a.List))
	}
	mode := p.CheckMode
	if mode == "" {
		mode = All
	}
	return fmt.Sprintf("%s(%s)", mode, strings.Join(parts, ","))
}
