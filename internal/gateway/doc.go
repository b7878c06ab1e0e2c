// Package gateway はウォレット認証ゲートウェイのHTTPサーバーを提供する。
//
// ウォレット署名によるログイン、リフレッシュ、ウォレットの紐付けを受け付け、
// それ以外のリクエストは認可チェーンで評価してから宣言されたルートの転送先に送る。
// 外部からアクセス可能な唯一の入口であり、セキュリティの境界線として機能する。
package gateway
