package route

import (
	"fmt"
	"log"
	"sync/atomic"
)

// Table は現在有効なRuleSetを保持する。
// 読み取りはロックを取らず、更新は新しいRuleSetを組み立ててから一度に差し替える。
type Table struct {
	builder *Builder
	current atomic.Pointer[RuleSet]
}

// NewTable は初期設定をコンパイルしてTableを生成する。
func NewTable(builder *Builder, cfg Config) (*Table, error) {
	rs, err := builder.Build(cfg)
	if err != nil {
		return nil, err
	}
	t := &Table{builder: builder}
	t.current.Store(rs)
	return t, nil
}

// Load は現在のRuleSetを返す。1リクエストの中では同じ値を使い続けること。
func (t *Table) Load() *RuleSet {
	return t.current.Load()
}

// Swap はRuleSetを差し替え、以前の値を返す。
func (t *Table) Swap(rs *RuleSet) *RuleSet {
	return t.current.Swap(rs)
}

// Reload は設定をコンパイルし直して差し替える。
// コンパイルに失敗した場合は現在のRuleSetを維持する。
func (t *Table) Reload(cfg Config) error {
	rs, err := t.builder.Build(cfg)
	if err != nil {
		return fmt.Errorf("ルート表の再構築に失敗: %w", err)
	}
	t.Swap(rs)
	log.Printf("[Route] ルート表を再構築しました: routes=%d securityRules=%d", len(rs.Routes), len(rs.Security.Rules()))
	return nil
}
