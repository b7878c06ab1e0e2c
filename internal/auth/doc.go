// Package auth はウォレット署名によるログインとセッション管理を提供する。
//
// ログインは次の段階を順に進む:
//
//	チャレンジ発行 → 署名検証 → セッション発行 → （以降）リフレッシュ
//
// nonceは1回限り有効で、ウォレットごとに最新の1つだけが残る。
// リフレッシュトークンは同時に発行したJWTのハッシュに紐付き、使うたびに新しい値へ差し替わる。
package auth
