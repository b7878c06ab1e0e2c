// Package route はリクエストを転送先ルートとセキュリティ要件に解決する。
//
// 宣言（Config）はBuilderで一度だけコンパイルされ、不変のRuleSetになる。
// RuleSetはTableが原子的に保持し、設定の再読み込み時は新しいRuleSetに丸ごと差し替える。
// 評価はPredicate.Resolveで行い、同じRuleSetと同じリクエストからは常に同じ結果を返す。
//
// 2種類のマッチャーを提供する:
//   - MVC: /v1/auth/login/{wallet} のようなURLテンプレート。PatternParserでコンパイルする。
//   - REGEX: ベースパスと連結した正規表現の完全一致。
package route
